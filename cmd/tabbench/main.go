// Command tabbench inspects, replays and builds tabular benchmark datasets.
//
//	tabbench spec   -recipe recipe.yaml
//	tabbench eval   -recipe recipe.yaml -seed 1 -params 0,1,2,0,1,2,0,4,5 -budget 1 -steps 3
//	tabbench eval   -addr localhost:50051 -seed 1 -params 0,1 -budget 2
//	tabbench import -in dataset.json -out dataset.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/server"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
)

const usage = `usage: tabbench <command> [flags]

commands:
  spec     print the problem specification
  eval     replay a configuration's learning curve
  import   convert a JSON dataset document into a sqlite dataset
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "spec":
		err = runSpec(args[1:], stdout, stderr)
	case "eval":
		err = runEval(args[1:], stdout, stderr)
	case "import":
		err = runImport(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "tabbench: unknown command %q\n%s", args[0], usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "tabbench:", err)
		return 1
	}
	return 0
}

// recipeFlags are shared by the commands that open a dataset locally.
type recipeFlags struct {
	recipe   string
	dataset  string
	logLevel string
}

func (r *recipeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.recipe, "recipe", "", "recipe YAML file")
	fs.StringVar(&r.dataset, "dataset", "", "dataset file (used when -recipe is not given)")
	fs.StringVar(&r.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func (r *recipeFlags) factory(ctx context.Context, stderr io.Writer) (*benchmark.Factory, error) {
	logger.SetDefault(logger.NewText(r.logLevel, stderr))

	var recipe benchmark.Recipe
	switch {
	case r.recipe != "":
		loaded, err := benchmark.LoadRecipe(r.recipe)
		if err != nil {
			return nil, err
		}
		recipe = loaded
	case r.dataset != "":
		recipe = benchmark.NewRecipe(r.dataset)
	default:
		return nil, errors.New("one of -recipe or -dataset is required")
	}
	return recipe.CreateFactoryContext(ctx)
}

func runSpec(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("spec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var rf recipeFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := rf.factory(context.Background(), stderr)
	if err != nil {
		return err
	}
	return writeJSON(stdout, f.Specification())
}

// evalResult is one line of eval output.
type evalResult struct {
	Run    int              `json:"run"`
	Values benchmark.Values `json:"values"`
}

func runEval(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var rf recipeFlags
	rf.register(fs)
	addr := fs.String("addr", "", "gRPC address of a tabbenchd to evaluate on instead of a local dataset")
	seed := fs.Int64("seed", 0, "problem seed")
	params := fs.String("params", "", "comma-separated parameter indices")
	budget := fs.Int("budget", 1, "epochs per step")
	steps := fs.Int("steps", 1, "number of evaluate calls; 0 runs until exhausted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger.SetDefault(logger.NewText(rf.logLevel, stderr))

	vector, err := parseParams(*params)
	if err != nil {
		return err
	}
	if *steps < 0 {
		return fmt.Errorf("-steps cannot be negative, got %d", *steps)
	}

	ctx := context.Background()
	var step func() (evalResult, error)
	if *addr != "" {
		var closeConn func() error
		step, closeConn, err = remoteEvaluator(ctx, *addr, *seed, vector, *budget)
		if err != nil {
			return err
		}
		defer closeConn()
	} else if step, err = localEvaluator(ctx, &rf, stderr, *seed, vector, *budget); err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	for i := 0; *steps == 0 || i < *steps; i++ {
		res, err := step()
		if errors.Is(err, benchmark.ErrEvaluatorExhausted) && *steps == 0 {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

func localEvaluator(ctx context.Context, rf *recipeFlags, stderr io.Writer, seed int64, vector []int, budget int) (func() (evalResult, error), error) {
	f, err := rf.factory(ctx, stderr)
	if err != nil {
		return nil, err
	}
	p, err := f.CreateProblem(seed)
	if err != nil {
		return nil, err
	}
	e, err := p.CreateEvaluator(vector)
	if err != nil {
		return nil, err
	}
	return func() (evalResult, error) {
		v, err := e.Evaluate(budget)
		return evalResult{Run: e.Run(), Values: v}, err
	}, nil
}

// remoteEvaluator drives an evaluator on a tabbenchd over gRPC. The returned
// close func drops the evaluator and closes the connection.
func remoteEvaluator(ctx context.Context, addr string, seed int64, vector []int, budget int) (func() (evalResult, error), func() error, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	c := server.NewClient(conn)

	problemID, err := c.CreateProblem(ctx, seed)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	view, err := c.CreateEvaluator(ctx, problemID, vector)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	step := func() (evalResult, error) {
		v, err := c.Evaluate(ctx, view.ID, budget)
		if status.Code(err) == codes.FailedPrecondition {
			err = fmt.Errorf("%w: %w", benchmark.ErrEvaluatorExhausted, err)
		}
		return evalResult{Run: view.Run, Values: v}, err
	}
	closeFn := func() error {
		if err := c.DropEvaluator(ctx, view.ID); err != nil {
			logger.Warn("drop remote evaluator failed", "evaluator_id", view.ID, "error", err)
		}
		return conn.Close()
	}
	return step, closeFn, nil
}

func parseParams(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("-params is required")
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("-params component %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func runImport(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "JSON dataset document")
	out := fs.String("out", "", "sqlite dataset to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("-in and -out are required")
	}

	if err := importDocument(context.Background(), *in, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func importDocument(ctx context.Context, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := dataset.ReadDocument(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists", out)
	}

	w, err := dataset.CreateSQLite(ctx, out)
	if err != nil {
		return err
	}
	if err := doc.WriteTo(w); err != nil {
		_ = w.Close()
		_ = os.Remove(out)
		return fmt.Errorf("write %s: %w", out, err)
	}
	return w.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
