package cmd

import (
	"flag"
	"io"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var (
	windows = predict.Set{"1M", "3M", "6M", "1Y", "ALL"}
	series  = predict.Set{"cushion", "investment", "debt"}
)

// flagPredictors completes flag values whose domain is known. Other flags
// accept anything.
var flagPredictors = map[string]complete.Predictor{
	"state": predict.Files("*.jsonl"),
	"store": predict.Files("*.db"),
	"w":     windows,
	"hide":  series,
}

// argPredictors completes the positional arguments of some commands.
var argPredictors = map[string]complete.Predictor{
	"tx":    predict.Set{"emergency", "invest"},
	"rm":    predict.Set{"emergency", "invest", "debt", "trade"},
	"open":  predict.Set{"BUY", "SELL"},
	"stats": series,
	"topic": predict.Set{"amounts", "runway", "debts", "trades", "statistics", "projection", "sync"},
}

// Completion describes the command line for shell completion.
func Completion() *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flagsOf(flag.CommandLine.VisitAll),
	}
	for _, g := range Commands {
		for _, c := range g.Commands {
			fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			c.SetFlags(fs)
			root.Sub[c.Name()] = &complete.Command{
				Flags: flagsOf(fs.VisitAll),
				Args:  argPredictors[c.Name()],
			}
		}
	}
	return root
}

func flagsOf(visit func(func(*flag.Flag))) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	visit(func(f *flag.Flag) {
		p, ok := flagPredictors[f.Name]
		switch {
		case ok:
		case isBool(f):
			p = predict.Nothing
		default:
			p = predict.Something
		}
		flags[f.Name] = p
	})
	return flags
}

func isBool(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}
