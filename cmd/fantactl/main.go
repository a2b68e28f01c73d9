// Command fantactl is the operator CLI for a running fantacircolo service.
// It drives the admin endpoints: allow-listing users, seeding the market,
// recording scoring events and running the bulk rescore.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagAddr  string
	flagToken string
)

var rootCmd = &cobra.Command{
	Use:   "fantactl",
	Short: "Operate a fantacircolo service",
	Long: `fantactl drives the admin endpoints of a running fantacircolo service:
allow-listing users, seeding the market catalog, recording scoring events
and running the bulk rescore that repairs user totals.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "http://localhost:9080", "Base URL of the service")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token of an admin user")

	rootCmd.AddCommand(allowCmd)
	rootCmd.AddCommand(addCharacterCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(rescoreCmd)
	rootCmd.AddCommand(driftCmd)

	addCharacterCmd.Flags().StringP("category", "c", "", "Category: Circolo, Equipe or Ospite")
	addCharacterCmd.Flags().IntP("price", "p", 0, "Price in credits")
	_ = addCharacterCmd.MarkFlagRequired("category")
}

var allowCmd = &cobra.Command{
	Use:   "allow EMAIL",
	Short: "Add an email to the allow-list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodPost, "/allowlist", map[string]string{"email": args[0]})
	},
}

var addCharacterCmd = &cobra.Command{
	Use:   "add-character NAME",
	Short: "Create or update a market character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		price, _ := cmd.Flags().GetInt("price")
		return call(http.MethodPost, "/market", map[string]any{
			"name":     args[0],
			"category": category,
			"price":    price,
		})
	},
}

var recordCmd = &cobra.Command{
	Use:   "record CHARACTER_ID ACTION",
	Short: "Record a scoring event against a character",
	Long: `Record a scoring event. ACTION is one of the fixed catalog keys:
canta, parla, saluta, battuta, errore, ospite. A request id is generated so
an interrupted invocation can be retried without double-scoring.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodPost, "/events", map[string]string{
			"character_id": args[0],
			"action_key":   args[1],
			"request_id":   uuid.NewString(),
		})
	},
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore CHARACTER_ID=SCORE ...",
	Short: "Bulk rescore: set character scores and recompute every user total",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scores := make(map[string]int, len(args))
		for _, pair := range args {
			id, raw, ok := strings.Cut(pair, "=")
			if !ok || id == "" {
				return fmt.Errorf("malformed pair %q; want CHARACTER_ID=SCORE", pair)
			}
			score, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("malformed score in %q: %w", pair, err)
			}
			scores[id] = score
		}
		return call(http.MethodPost, "/rescore", map[string]any{"scores": scores})
	},
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "List users whose stored totals diverge from a full recompute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodGet, "/drift", nil)
	},
}

// call performs one API request and prints the JSON response.
func call(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, strings.TrimRight(flagAddr, "/")+path, reader)
	if err != nil {
		return err
	}
	if flagToken != "" {
		req.Header.Set("Authorization", "Bearer "+flagToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Println(string(raw))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
