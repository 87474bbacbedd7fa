// Command computecli is a minimal interactive client: username and
// password are positional arguments, the server address comes from the
// --server flag. It submits one task described by the --sort or
// --primes-from/--primes-to flags, draws a progress bar and waits for
// the task's terminal frame; the result itself is not printed.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cppla/computesrv/client"
	"github.com/cppla/computesrv/netcli"
	"github.com/cppla/computesrv/protocol"
	"github.com/cppla/computesrv/utils"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] username password\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
}

func main() {
	help := pflag.BoolP("help", "h", false, "show this help text")
	server := pflag.StringP("server", "s", "127.0.0.1:9000", "server address host:port")
	sortArg := pflag.String("sort", "", "comma-separated int32 values to sort")
	primesFrom := pflag.Int32("primes-from", 0, "lower bound for FindPrimeNumbers")
	primesTo := pflag.Int32("primes-to", 0, "upper bound for FindPrimeNumbers")
	pflag.Parse()

	if *help || pflag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	username, password := pflag.Arg(0), pflag.Arg(1)
	logger := utils.Logger
	defer logger.Sync()

	sess, err := client.NewSession(netcli.Config{
		DialAddr:   *server,
		Credential: protocol.Credential{Username: username, Password: password},
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %s\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	var req protocol.Request
	switch {
	case *sortArg != "":
		req = protocol.SortArrayMsg{Numbers: parseInt32List(*sortArg)}
	case *primesTo != 0:
		req = protocol.FindPrimeNumbersMsg{XFrom: *primesFrom, XTo: *primesTo}
	default:
		fmt.Fprintln(os.Stderr, "no task requested; pass --sort or --primes-from/--primes-to")
		os.Exit(1)
	}

	bar := client.NewBarSink(os.Stdout)
	sess.Track(bar)
	if err := sess.Submit(req); err != nil {
		fmt.Fprintf(os.Stderr, "failed to submit task: %s\n", err)
		os.Exit(1)
	}

	bar.Wait()
	logger.Info("task finished", zap.String("username", username))
}

func parseInt32List(s string) []int32 {
	var out []int32
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				var v int32
				fmt.Sscanf(s[start:i], "%d", &v)
				out = append(out, v)
			}
			start = i + 1
		}
	}
	return out
}
