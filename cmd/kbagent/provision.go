package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/kbagent/internal/awsprov"
	"github.com/kalambet/kbagent/internal/config"
	"github.com/kalambet/kbagent/internal/metrics"
	"github.com/kalambet/kbagent/internal/provision"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the storage, role, collection and knowledge base for a project",
	Long: `Create every cloud resource the agent needs, upload the seed documents and
run the first ingestion. Re-running with the same names treats existing
resources as done. The resulting identifiers are written as JSON.

Examples:
  kbagent provision --project acme
  kbagent provision --project acme --docs-dir ./docs --strict-uploads
  kbagent provision --plan plan.yaml --output acme.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := provisionOptions{}
		opts.project, _ = cmd.Flags().GetString("project")
		opts.region, _ = cmd.Flags().GetString("region")
		opts.planFile, _ = cmd.Flags().GetString("plan")
		opts.docsDir, _ = cmd.Flags().GetString("docs-dir")
		opts.output, _ = cmd.Flags().GetString("output")
		opts.metricsFile, _ = cmd.Flags().GetString("metrics-file")
		if cmd.Flags().Changed("strict-uploads") {
			strict, _ := cmd.Flags().GetBool("strict-uploads")
			opts.strict = &strict
		}
		return runProvision(opts)
	},
}

func init() {
	provisionCmd.Flags().String("project", "", "project name used to derive resource names")
	provisionCmd.Flags().String("region", "", "AWS region (default aws.region)")
	provisionCmd.Flags().String("plan", "", "YAML plan file overlay")
	provisionCmd.Flags().String("docs-dir", "", "directory of seed documents (default built-in samples)")
	provisionCmd.Flags().Bool("strict-uploads", false, "abort when any seed document fails to upload")
	provisionCmd.Flags().String("output", "", "result file (default provision.output)")
	provisionCmd.Flags().String("metrics-file", "", "write step metrics in Prometheus text format")
}

type provisionOptions struct {
	project     string
	region      string
	planFile    string
	docsDir     string
	output      string
	metricsFile string
	strict      *bool
}

// buildPlan assembles the plan from config, the optional plan file and flags,
// in increasing precedence.
func buildPlan(cfg config.Config, opts provisionOptions, now time.Time) (provision.Plan, error) {
	var file provision.PlanFile
	if opts.planFile != "" {
		f, err := provision.LoadPlanFile(opts.planFile)
		if err != nil {
			return provision.Plan{}, err
		}
		file = f
	}

	project := opts.project
	if project == "" {
		project = file.Project
	}
	if project == "" {
		return provision.Plan{}, fmt.Errorf("--project is required")
	}

	plan := provision.NewPlan(project, now,
		provision.WithRegion(cfg.AWS.Region),
		provision.WithEmbeddingModel(cfg.AWS.EmbeddingModelID),
		provision.WithPolling(cfg.Provision.PollInterval, cfg.Provision.MaxPollAttempts),
		provision.WithSettleDelay(cfg.Provision.SettleDelay),
	)
	if err := file.Apply(&plan); err != nil {
		return provision.Plan{}, err
	}

	if opts.region != "" {
		plan.Region = opts.region
	}
	if opts.docsDir != "" {
		docs, err := provision.LoadDocumentDir(opts.docsDir)
		if err != nil {
			return provision.Plan{}, err
		}
		plan.Documents = docs
	}
	if opts.strict != nil {
		plan.AbortOnUploadFailure = *opts.strict
	}
	return plan, plan.Validate()
}

func runProvision(opts provisionOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log.Level)

	plan, err := buildPlan(cfg, opts, time.Now())
	if err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = cfg.Provision.Output
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := awsprov.New(ctx, plan.Region)
	if err != nil {
		return err
	}

	printStep("Provisioning %s in %s (%d seed documents)", plan.Project, plan.Region, len(plan.Documents))

	m := metrics.New()
	res, runErr := provision.New(providers, logger).Run(ctx, plan)

	steps := res.Steps
	var stepErr *provision.StepError
	if errors.As(runErr, &stepErr) {
		steps = stepErr.Steps
	}
	m.ObserveSteps(steps)
	printSteps(steps)

	if opts.metricsFile != "" {
		if err := m.WriteTextfile(opts.metricsFile); err != nil {
			printWarning("could not write metrics: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	for _, f := range res.UploadFailures {
		printWarning("upload of %s failed: %s", f.Document, f.Error)
	}

	if err := provision.WriteResult(output, res); err != nil {
		return err
	}

	printSuccess("Knowledge base %s ready", res.KnowledgeBaseID)
	printStatus("Data source", "%s", res.DataSourceID)
	printStatus("Bucket", "%s", res.BucketName)
	printStatus("Collection", "%s", res.CollectionName)
	printStatus("Role", "%s", res.RoleARN)
	printStatus("Result", "%s", output)
	return nil
}

func printSteps(steps []provision.StepResult) {
	for _, s := range steps {
		line := fmt.Sprintf("%-22s %s", s.Step, colorize(outcomeColor(string(s.Outcome)), string(s.Outcome)))
		if s.Resource != "" {
			line += "  " + s.Resource
		}
		if s.Reason != "" {
			line += "  " + s.Reason
		}
		fmt.Fprintf(os.Stderr, "  %s (%s)\n", line, s.Duration.Round(time.Millisecond))
	}
}
