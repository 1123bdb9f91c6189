package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/divergence"
	"github.com/macropower/rulelimits/pkg/drift"
	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/quota"
	"github.com/macropower/rulelimits/pkg/reconcile"
	"github.com/macropower/rulelimits/pkg/ruleset"
	"github.com/macropower/rulelimits/pkg/simulate"
)

const simulateExamples = `  # Apply the configured catalog to an engine that keeps two rulesets:
  rulelimits simulate --max-rulesets 2

  # Request more user rules than the engine allows:
  rulelimits simulate --dynamic-rules 6000 --dynamic-regexp-rules 1200`

type SimulateArgs struct {
	*RootArgs

	Output             string
	MaxRulesets        int
	Available          int
	RulesPerFilter     int
	RegexpPerFilter    int
	DynamicRules       int
	DynamicRegexpRules int
}

func NewSimulateArgs(rootArgs *RootArgs) *SimulateArgs {
	return &SimulateArgs{RootArgs: rootArgs}
}

func (sa *SimulateArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sa.Output, "output", "o", OutputAuto, fmt.Sprintf("Output format, one of: %s", AllOutputs))
	cmd.Flags().IntVar(&sa.MaxRulesets, "max-rulesets", host.DefaultMaxEnabledStaticRulesets, "Static rulesets the simulated engine keeps enabled")
	cmd.Flags().IntVar(&sa.Available, "available", 30000, "Static rules the simulated engine can still enable")
	cmd.Flags().IntVar(&sa.RulesPerFilter, "rules-per-filter", 1000, "Rules in each static ruleset")
	cmd.Flags().IntVar(&sa.RegexpPerFilter, "regexp-per-filter", 10, "Regular expression rules in each static ruleset")
	cmd.Flags().IntVar(&sa.DynamicRules, "dynamic-rules", 0, "User rules requested")
	cmd.Flags().IntVar(&sa.DynamicRegexpRules, "dynamic-regexp-rules", 0, "Regular expression user rules requested")

	must(cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions(AllOutputs, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewSimulateCmd(rootArgs *RootArgs) *cobra.Command {
	sa := NewSimulateArgs(rootArgs)

	cmd := &cobra.Command{
		Use:     "simulate",
		Short:   "Apply the filter catalog to an in-memory rule engine and reconcile",
		Example: simulateExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, sa)
		},
	}
	sa.AddFlags(cmd)

	return cmd
}

// simulateOutput is the structured form of the simulate command.
type simulateOutput struct {
	Quota   limitsOutput  `json:"quota"`
	Report  *drift.Report `json:"report"`
	Applies int           `json:"applies"`
}

func runSimulate(cmd *cobra.Command, sa *SimulateArgs) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	format, err := resolveOutput(sa.Output, w)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(sa.ConfigPath)
	if err != nil {
		return err
	}

	prefix := cfg.Filters.RulesetPrefix
	boundary := cfg.Filters.CustomFiltersStartID

	registry := filter.NewRegistry(cfg.Filters.Catalog)
	h := host.NewMemory(
		host.WithMaxEnabledRulesets(sa.MaxRulesets),
		host.WithAvailable(sa.Available),
	)
	records := divergence.NewStore(kv.NewMemory(nil), divergence.WithKey(cfg.Storage.Key))

	calc := quota.NewCalculator(registry, h,
		quota.WithPrefix(prefix),
		quota.WithCustomFiltersStartID(boundary),
		quota.WithLimits(*cfg.Limits),
	)
	detector := drift.NewDetector(registry, registry, h, records,
		drift.WithPrefix(prefix),
		drift.WithCustomFiltersStartID(boundary),
	)
	service := reconcile.NewService(calc, detector, records)

	counts := make(map[uint32]ruleset.Counter, len(cfg.Filters.Catalog))
	for _, m := range cfg.Filters.Catalog {
		counts[m.FilterID] = ruleset.Counter{
			FilterID:         m.FilterID,
			RulesCount:       sa.RulesPerFilter,
			RegexpRulesCount: sa.RegexpPerFilter,
		}
	}

	engine := simulate.NewEngine(service, registry, h,
		simulate.WithPrefix(prefix),
		simulate.WithCustomFiltersStartID(boundary),
		simulate.WithLimits(*cfg.Limits),
		simulate.WithRuleCounts(counts),
		simulate.WithDynamic(simulate.Dynamic{
			RulesCount:       sa.DynamicRules,
			RegexpRulesCount: sa.DynamicRegexpRules,
		}),
	)

	// Apply without a pass so that the pass below reports its outcome.
	err = engine.Apply(ctx, reconcile.CheckModeSkip)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	report, err := service.CheckAndReconcile(ctx, reconcile.CheckModeFull, engine.Apply)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped by the service.
	}

	snap, err := service.Limits(ctx)
	if err != nil {
		return fmt.Errorf("get limits: %w", err)
	}

	out := simulateOutput{
		Quota: newLimitsOutput(snap,
			alert.Evaluate(cfg.Alerts.All(), snap),
			service.FilterLimitsExceeded(ctx),
		),
		Report:  report,
		Applies: engine.Applies(),
	}

	if format == OutputText {
		printLimits(w, out.Quota, snap)
		mustN(fmt.Fprintln(w))
		printReport(w, report)
		mustN(fmt.Fprintf(w, "Configurations applied: %d\n", out.Applies))

		return nil
	}

	return encode(w, format, out)
}
