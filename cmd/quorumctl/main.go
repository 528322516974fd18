// Command quorumctl lets a participant talk to a coordinator.
//
// Every command except keygen verifies the enclave attestation first and
// only accepts mail signed by the attested key.
//
// # Commands
//
// keygen: Print a new participant key pair.
//
//	quorumctl keygen
//
// setup: Declare a computation.
//
//	quorumctl setup -u http://localhost:8080 -k $KEY -n salary -kind avg -p $ALICE,$BOB,$CHARLEY -q 2
//
// submit: Contribute a value, optionally with commentary.
//
//	quorumctl submit -u http://localhost:8080 -k $KEY -n salary -v 100 -m "base only"
//
// result: Request the result. Key-match results are collected from the inbox.
//
//	quorumctl result -u http://localhost:8080 -k $KEY -n salary
//
// list: List the computations this participant is part of.
//
//	quorumctl list -u http://localhost:8080 -k $KEY
//
// The key can also be given in the QUORUM_KEY environment variable.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flashbots/quorumcompute/client"
	"github.com/flashbots/quorumcompute/cmd/common"
	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/flashbots/quorumcompute/tdx"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "keygen":
		err = runKeygen()
	case "setup":
		err = runSetup(ctx, args)
	case "submit":
		err = runSubmit(ctx, args)
	case "result":
		err = runResult(ctx, args)
	case "list":
		err = runList(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`quorumctl - participant CLI for the quorum computation coordinator

Usage:
  quorumctl <command> [options]

Commands:
  keygen    Generate a participant key pair
  setup     Declare a computation
  submit    Submit a value
  result    Request a computation result
  list      List your computations

Run 'quorumctl <command> -h' for command-specific options.`)
}

// connection holds the options shared by every command that talks to the coordinator.
type connection struct {
	url             string
	key             string
	attestation     string
	tdxURL          string
	measurementsURL string
	timeout         time.Duration
}

func (c *connection) register(fs *flag.FlagSet) {
	fs.StringVar(&c.url, "u", "http://localhost:8080", "Coordinator URL")
	fs.StringVar(&c.key, "k", os.Getenv("QUORUM_KEY"), "Participant signing key (hex)")
	fs.StringVar(&c.attestation, "attestation", tdx.DummyProviderName, "Attestation provider: dummy, tdx or remote")
	fs.StringVar(&c.tdxURL, "tdx-url", "", "Remote TDX verification service URL")
	fs.StringVar(&c.measurementsURL, "measurements-url", "", "URL for allowed enclave measurements")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Second, "Time to wait for a reply")
}

// dial creates a client and verifies the enclave behind c.url.
func (c *connection) dial(ctx context.Context) (*client.Client, error) {
	if c.key == "" {
		return nil, errors.New("-k or QUORUM_KEY is required")
	}
	signingKey, err := common.LoadOrGenerateSigningKey(c.key)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	provider, err := tdx.NewProvider(c.attestation, c.tdxURL, c.timeout)
	if err != nil {
		return nil, err
	}

	cl, err := client.New(c.url, signingKey)
	if err != nil {
		return nil, err
	}
	info, err := cl.Verify(ctx, provider, common.NewMeasurementSource(c.measurementsURL))
	if err != nil {
		return nil, fmt.Errorf("enclave verification failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Verified enclave %s (%s)\n", info.PublicKey.Short(), info.AttestationType)
	return cl, nil
}

func runKeygen() error {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	fmt.Printf("public:  %s\n", pub.String())
	fmt.Printf("private: %s\n", hex.EncodeToString(priv.Bytes()))
	return nil
}

func runSetup(ctx context.Context, args []string) error {
	var (
		conn         connection
		name         string
		kind         string
		participants string
		quorum       int
	)
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	conn.register(fs)
	fs.StringVar(&name, "n", "", "Computation name")
	fs.StringVar(&kind, "kind", "", "Computation kind: avg, min, max or key")
	fs.StringVar(&participants, "p", "", "Comma separated participant public keys (hex)")
	fs.IntVar(&quorum, "q", 0, "Quorum")
	if err := fs.Parse(args); err != nil {
		return err
	}

	keys, err := parsePublicKeys(participants)
	if err != nil {
		return err
	}

	cl, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, conn.timeout)
	defer cancel()

	resp, err := cl.Setup(ctx, name, protocol.ComputationKind(kind), keys, quorum)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runSubmit(ctx context.Context, args []string) error {
	var (
		conn    connection
		name    string
		value   string
		message string
	)
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	conn.register(fs)
	fs.StringVar(&name, "n", "", "Computation name")
	fs.StringVar(&value, "v", "", "Value to submit")
	fs.StringVar(&message, "m", "", "Optional commentary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cl, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, conn.timeout)
	defer cancel()

	resp, err := cl.Submit(ctx, name, value, message)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runResult(ctx context.Context, args []string) error {
	var (
		conn connection
		name string
	)
	fs := flag.NewFlagSet("result", flag.ContinueOnError)
	conn.register(fs)
	fs.StringVar(&name, "n", "", "Computation name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cl, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, conn.timeout)
	defer cancel()

	resp, err := cl.Result(ctx, name)
	if err != nil {
		return err
	}
	if resp.Code != protocol.CheckInbox {
		return printJSON(resp)
	}

	matches, err := cl.KeyMatches(ctx)
	if err != nil {
		return fmt.Errorf("collecting key matches: %w", err)
	}
	return printJSON(matches)
}

func runList(ctx context.Context, args []string) error {
	var conn connection
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	conn.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cl, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, conn.timeout)
	defer cancel()

	resp, err := cl.List(ctx)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func parsePublicKeys(s string) ([]crypto.PublicKey, error) {
	var keys []crypto.PublicKey
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pk, err := crypto.NewPublicKeyFromString(field)
		if err != nil {
			return nil, fmt.Errorf("invalid participant key %q: %w", field, err)
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
