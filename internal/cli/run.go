package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/adapter/browsers"
	"github.com/user/pagecheck-service/internal/adapter/profile"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/verifier"
)

// ErrVerificationFailed is returned when a scenario ran but did not pass.
var ErrVerificationFailed = errors.New("verification failed")

type runOptions struct {
	scenario     string
	scenarioFile string
	baseURL      string
	driver       string
	datePolicy   string
	jsonOutput   bool
	headed       bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario and print its report",
		Example: `  # Check the blog pagination of the default site
  pagecheck run --scenario pagination

  # Against a staging host with the rod driver, as JSON
  pagecheck run --scenario journey --base-url https://staging.example.com --driver rod --json

  # A scenario kept outside the catalog
  pagecheck run --scenario-file ./checks/news.yaml --driver http`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.scenario == "" && opts.scenarioFile == "" {
				return errors.New("one of --scenario or --scenario-file is required")
			}
			if opts.scenario != "" && opts.scenarioFile != "" {
				return errors.New("--scenario and --scenario-file are mutually exclusive")
			}
			return a.run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.scenario, "scenario", "s", "", "catalog scenario to run")
	cmd.Flags().StringVar(&opts.scenarioFile, "scenario-file", "", "path to a scenario YAML file")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "site to verify (default: scenario, then BASE_URL)")
	cmd.Flags().StringVar(&opts.driver, "driver", "", "browser driver: chromedp, rod, playwright, http (default BROWSER_DRIVER)")
	cmd.Flags().StringVar(&opts.datePolicy, "date-policy", "", "lenient or strict handling of unparseable dates (default DATE_POLICY)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&opts.headed, "headed", false, "show the browser window")

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts runOptions) error {
	sc, err := a.loadScenario(opts)
	if err != nil {
		return err
	}

	driver := opts.driver
	if driver == "" {
		driver = a.cfg.BrowserDriver
	}
	policy := a.cfg.DatePolicy
	if opts.datePolicy != "" {
		policy = opts.datePolicy
	}
	datePolicy, err := verifier.ParseDatePolicy(policy)
	if err != nil {
		return err
	}
	baseURL := sc.BaseURLFor(opts.baseURL, a.cfg.BaseURL)

	registry := browsers.NewRegistry(browsers.Options{
		Headless:      a.cfg.Headless && !opts.headed,
		RodStealth:    a.cfg.RodStealth,
		ActionTimeout: a.cfg.NavigationTimeout,
		Profile:       profile.NewManager(a.cfg.ProxyList, a.cfg.UserAgents),
		Logger:        a.logger.Named("browser"),
	})
	defer func() {
		if err := registry.Close(); err != nil {
			a.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}()
	if !registry.Known(driver) {
		return fmt.Errorf("%w: %q", browsers.ErrUnknownDriver, driver)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RunTimeout)
	defer cancel()

	browser, err := registry.Get(ctx, driver)
	if err != nil {
		return err
	}
	sess, err := browser.NewSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	a.logger.Info("Running scenario",
		zap.String("scenario", sc.Name),
		zap.String("base_url", baseURL),
		zap.String("driver", driver),
	)
	v := verifier.New(verifier.Options{
		VisibilityTimeout: a.cfg.VisibilityTimeout,
		NavigationTimeout: a.cfg.NavigationTimeout,
		PopupTimeout:      a.cfg.PopupTimeout,
		Dates:             verifier.DateComparator{Policy: datePolicy},
		Logger:            a.logger.Named("verifier"),
	})
	report, runErr := v.Run(ctx, sess, sc, baseURL)

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newJSONReport(report, runErr)); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderReport(report, driver))
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, runErr)
	}
	return nil
}

func (a *app) loadScenario(opts runOptions) (*scenario.Scenario, error) {
	if opts.scenarioFile != "" {
		return scenario.LoadFile(opts.scenarioFile)
	}
	catalog, err := scenario.NewCatalog(a.cfg.ScenarioDir)
	if err != nil {
		return nil, err
	}
	return catalog.Get(opts.scenario)
}

type jsonReport struct {
	*verifier.Report
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func newJSONReport(r *verifier.Report, err error) jsonReport {
	out := jsonReport{Report: r}
	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = verifier.ErrorKind(err)
	}
	return out
}
