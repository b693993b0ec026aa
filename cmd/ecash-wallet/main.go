// Command ecash-wallet is the holder-side CLI: it withdraws tokens from an
// issuer, stores them locally, and spends them by redeeming at the issuer's
// redemption endpoint.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"

	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/walletconfig"
	"github.com/chronocoders/ecash/walletcore"
	"github.com/chronocoders/ecash/walletstore"
)

var walletLog = ecashlog.SubLogger(ecashlog.SubsystemWallet)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ecash-wallet: %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "ecash-wallet"
	app.Usage = "a Chaumian eCash wallet"
	app.Action = runMenu

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func runMenu(c *cli.Context) error {
	cfg, err := walletconfig.Load()
	if err != nil {
		return err
	}
	ecashlog.InitBackend(os.Stderr)
	ecashlog.SetLogLevel("all", cfg.LogLevel)

	store, err := walletstore.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	httpClient := newClient(cfg.ServerURL)

	keys, err := fetchIssuerKeys(httpClient)
	if err != nil {
		return fmt.Errorf("connecting to issuer at %s: %w", cfg.ServerURL, err)
	}
	wallet := walletcore.New(keys)

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println()
		fmt.Println("1) balance")
		fmt.Println("2) withdraw")
		fmt.Println("3) spend")
		fmt.Println("4) list tokens")
		fmt.Println("5) health")
		fmt.Println("6) exit")
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		choice := strings.TrimSpace(line)

		switch choice {
		case "1":
			handleBalance(ctx, store)
		case "2":
			handleWithdraw(ctx, reader, httpClient, store, wallet)
		case "3":
			handleSpend(ctx, reader, httpClient, store)
		case "4":
			handleListTokens(ctx, store)
		case "5":
			handleHealth(httpClient)
		case "6":
			return nil
		default:
			fmt.Println("unrecognized option")
		}
	}
}

func readUint(reader *bufio.Reader, prompt string) (uint64, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(line), 10, 64)
}

func handleBalance(ctx context.Context, store *walletstore.Store) {
	balance, err := store.Balance(ctx)
	if err != nil {
		walletLog.Errorf("balance: %v", err)
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("balance: %d\n", balance)
}

func handleWithdraw(ctx context.Context, reader *bufio.Reader, c *client, store *walletstore.Store, w *walletcore.Wallet) {
	amount, err := readUint(reader, "amount: ")
	if err != nil {
		fmt.Println("invalid amount:", err)
		return
	}
	denomination, err := readUint(reader, "denomination: ")
	if err != nil {
		fmt.Println("invalid denomination:", err)
		return
	}

	tokens, err := runWithdraw(ctx, c, store, w, amount, denomination)
	if err != nil {
		walletLog.Errorf("withdraw: %v", err)
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("withdrew %d tokens\n", len(tokens))
}

func handleSpend(ctx context.Context, reader *bufio.Reader, c *client, store *walletstore.Store) {
	amount, err := readUint(reader, "amount: ")
	if err != nil {
		fmt.Println("invalid amount:", err)
		return
	}

	resp, err := runSpend(ctx, c, store, amount)
	if err != nil {
		walletLog.Errorf("spend: %v", err)
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("redeemed %d tokens, total %d\n", resp.AcceptedCount, resp.TotalAmount)
}

func handleListTokens(ctx context.Context, store *walletstore.Store) {
	available, err := store.Available(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"serial", "denomination", "currency", "expires_at"})
	for _, st := range available {
		t.AppendRow(table.Row{st.Token.SerialHex(), st.Token.Denomination, st.Token.Currency, st.Token.ExpiresAt.Format("2006-01-02")})
	}
	t.Render()
}

func handleHealth(c *client) {
	health, err := c.Health()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("status=%s database=%s redis=%s\n", health.Status, health.Database, health.Redis)
}
