// Command numgrade grades free-form numerical answers against a problem
// description.
//
// With answer arguments, each is graded and the verdict printed. Without
// arguments, numgrade starts an interactive session.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillathe/numgrade"
)

var rootCmd = &cobra.Command{
	Use:   "numgrade [answers]",
	Short: "Grade free-form numerical answers",
	Long: `numgrade grades answers submitted as mathematical expressions against a
problem description. The expected answer is compared numerically over
randomized trials, so any algebraically equivalent form is accepted.

Problems are YAML files describing the expected answer, the permitted
variables and how they are sampled, the matching tolerance, and the
comparison rule.`,
	Args: cobra.ArbitraryArgs,
	RunE: runGrade,
}

var flags struct {
	problem string
	seed    uint64
	trials  int
	debug   bool
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.problem, "problem", "p", "", "problem description file (YAML)")
	rootCmd.Flags().Uint64Var(&flags.seed, "seed", 0, "explicit random seed (default derives from the answer)")
	rootCmd.Flags().IntVar(&flags.trials, "trials", 0, "override the number of sampling trials")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "include instructor detail in messages")
	rootCmd.AddCommand(checkCmd, evalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGrade(cmd *cobra.Command, args []string) error {
	g, err := loadGrader(flags.problem)
	if err != nil {
		return err
	}
	for _, is := range g.Issues() {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", is.Level, is.Name, is.Message)
	}
	if len(args) == 0 {
		return repl(g)
	}
	for _, answer := range args {
		var res numgrade.GradeResult
		var err error
		switch {
		case cmd.Flags().Changed("seed"):
			res, err = g.GradeSeeded(answer, flags.seed)
		case flags.trials > 0:
			res, err = g.GradeTrials(answer, flags.trials)
		default:
			res, err = g.Grade(answer)
		}
		if err != nil {
			return err
		}
		printResult(os.Stdout, answer, res)
	}
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a problem description",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGrader(flags.problem)
		if err != nil {
			return err
		}
		issues := g.Issues()
		for _, is := range issues {
			fmt.Printf("%s: %s: %s\n", is.Level, is.Name, is.Message)
		}
		if len(issues) == 0 {
			fmt.Println("ok")
		}
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval [expressions]",
	Short: "Evaluate expressions with given bindings",
	Long: `eval parses and evaluates each argument with the default constants and
functions. Variables are bound with --given name=value, any number of
times; values are themselves expressions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

var given []string

func init() {
	evalCmd.Flags().StringArrayVar(&given, "given", nil, "name=value variable binding")
}

func runEval(cmd *cobra.Command, args []string) error {
	opts, err := bindings(given)
	if err != nil {
		return err
	}
	for _, src := range args {
		v, err := numgrade.EvalString(src, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
			continue
		}
		fmt.Println(v)
	}
	return nil
}

func bindings(given []string) ([]numgrade.ContextOption, error) {
	var opts []numgrade.ContextOption
	for _, d := range given {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			return nil, fmt.Errorf(`variable definitions must be "name=value", not %q`, d)
		}
		v, err := numgrade.EvalString(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", strings.TrimSpace(name), err)
		}
		opts = append(opts, numgrade.SetVar(strings.TrimSpace(name), v))
	}
	return opts, nil
}

func printResult(w *os.File, answer string, res numgrade.GradeResult) {
	verdict := string(res.Kind)
	if res.Matched && res.Credit < 1 {
		verdict = fmt.Sprintf("%s (%.0f%% credit)", res.Kind, res.Credit*100)
	}
	if res.Message != "" {
		fmt.Fprintf(w, "%s: %s: %s\n", answer, verdict, res.Message)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", answer, verdict)
}
