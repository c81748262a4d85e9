package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// benchCase is one lookup to send, with the historical label if the file has one.
type benchCase struct {
	Name  string
	Label string
}

// Metrics tracks benchmark results
type Metrics struct {
	// Agreement with historical Loan_Status labels
	TruePositives  int64 // Approved, label approved
	FalsePositives int64 // Approved, label rejected
	TrueNegatives  int64 // Rejected, label rejected
	FalseNegatives int64 // Rejected, label approved

	Approved       int64
	Rejected       int64
	Disagreements  int64
	TotalProcessed int64
	TotalErrors    int64

	mu         sync.Mutex
	errorKinds map[string]int64
	latencies  []time.Duration
}

func (m *Metrics) observe(d time.Duration, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, d)
	if kind != "" {
		if m.errorKinds == nil {
			m.errorKinds = make(map[string]int64)
		}
		m.errorKinds[kind]++
	}
}

func newBenchmarkCmd() *cobra.Command {
	var (
		baseURL string
		file    string
		limit   int
		workers int
		repeat  int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Load test a running Kestrel server",
		Long: `Send POST /lookups for every customer in a JSON or CSV file using concurrent
workers, then report outcome counts, latency percentiles and, when the file
carries Loan_Status labels, how often the model agrees with them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			baseURL = strings.TrimRight(baseURL, "/")

			fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════════╗")
			fmt.Fprintln(out, "║               KESTREL BENCHMARK - Loan Lookups                ║")
			fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════════╝")
			fmt.Fprintf(out, "\nCustomers:   %s\n", file)
			fmt.Fprintf(out, "Kestrel URL: %s\n", baseURL)
			fmt.Fprintf(out, "Workers:     %d\n", workers)
			fmt.Fprintf(out, "Repeat:      %d\n\n", repeat)

			if err := checkHealth(baseURL); err != nil {
				return fmt.Errorf("kestrel not reachable at %s: %w", baseURL, err)
			}
			fmt.Fprintln(out, "✓ Kestrel is healthy")

			docs, err := readCustomerDocuments(file, limit)
			if err != nil {
				return err
			}
			cases := make([]benchCase, 0, len(docs)*repeat)
			for r := 0; r < repeat; r++ {
				for _, doc := range docs {
					name, _ := doc[domain.ColumnName].(string)
					label, _ := doc[domain.ColumnLoanStatus].(string)
					if name == "" {
						continue
					}
					cases = append(cases, benchCase{Name: name, Label: label})
				}
			}
			fmt.Fprintf(out, "✓ Loaded %d lookups\n", len(cases))

			fmt.Fprintf(out, "\nRunning benchmark with %d workers...\n", workers)
			startTime := time.Now()
			metrics := runBenchmark(out, cases, baseURL, workers, verbose)
			printResults(out, metrics, time.Since(startTime))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Kestrel base URL")
	cmd.Flags().StringVarP(&file, "file", "f", "artifacts/customers.json", "customer file (.json or .csv)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum customers to read (0 = all)")
	cmd.Flags().IntVar(&workers, "workers", 10, "number of concurrent workers")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "look up every customer this many times")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print each lookup result")
	return cmd
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(out io.Writer, cases []benchCase, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	work := make(chan benchCase, 100)
	var wg sync.WaitGroup
	var printMu sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				resp, kind, err := lookupCustomer(client, baseURL, c.Name)
				metrics.observe(time.Since(start), kind)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						printMu.Lock()
						fmt.Fprintf(out, "ERROR: %s -> %v\n", c.Name, err)
						printMu.Unlock()
					}
					continue
				}

				approved := resp.Status == domain.OutcomeApproved
				if approved {
					atomic.AddInt64(&metrics.Approved, 1)
				} else {
					atomic.AddInt64(&metrics.Rejected, 1)
				}
				if resp.RationaleDisagrees {
					atomic.AddInt64(&metrics.Disagreements, 1)
				}

				if c.Label != "" {
					actual := strings.EqualFold(c.Label, string(domain.OutcomeApproved))
					switch {
					case approved && actual:
						atomic.AddInt64(&metrics.TruePositives, 1)
					case approved && !actual:
						atomic.AddInt64(&metrics.FalsePositives, 1)
					case !approved && !actual:
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					default:
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}
				}

				if verbose {
					printMu.Lock()
					fmt.Fprintf(out, "%-24s | %-8s | label: %-8s | %s\n",
						c.Name, resp.Status, c.Label, strings.Join(resp.Reasons, ", "))
					printMu.Unlock()
				}
			}
		}()
	}

	for _, c := range cases {
		work <- c
	}
	close(work)

	wg.Wait()

	return metrics
}

// lookupCustomer returns the decision, or the error kind reported by the server.
func lookupCustomer(client *http.Client, baseURL, name string) (*domain.LookupResponse, string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, domain.KindInternal, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/lookups", bytes.NewReader(body))
	if err != nil {
		return nil, domain.KindInternal, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, "transport", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Kind == "" {
			e.Kind = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		return nil, e.Kind, fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}

	var result domain.LookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "decode", err
	}
	return &result, "", nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(out io.Writer, m *Metrics, duration time.Duration) {
	fmt.Fprintln(out, "\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║                      BENCHMARK RESULTS                        ║")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════════╝")

	fmt.Fprintf(out, "\nOUTCOMES\n")
	fmt.Fprintf(out, "   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Fprintf(out, "   Approved:         %d\n", m.Approved)
	fmt.Fprintf(out, "   Rejected:         %d\n", m.Rejected)
	fmt.Fprintf(out, "   Disagreements:    %d  (no listed reason supports the decision)\n", m.Disagreements)
	fmt.Fprintf(out, "   Errors:           %d\n", m.TotalErrors)
	for _, kind := range sortedKeys(m.errorKinds) {
		fmt.Fprintf(out, "     %-18s %d\n", kind+":", m.errorKinds[kind])
	}

	labelled := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if labelled > 0 {
		fmt.Fprintf(out, "\nAGREEMENT WITH HISTORICAL LABELS\n")
		fmt.Fprintln(out, "                        Model")
		fmt.Fprintln(out, "                   Approved    Rejected")
		fmt.Fprintln(out, "              ┌──────────┬──────────┐")
		fmt.Fprintf(out, "   Label   A  │ %8d │ %8d │\n", m.TruePositives, m.FalseNegatives)
		fmt.Fprintln(out, "              ├──────────┼──────────┤")
		fmt.Fprintf(out, "           R  │ %8d │ %8d │\n", m.FalsePositives, m.TrueNegatives)
		fmt.Fprintln(out, "              └──────────┴──────────┘")

		accuracy := float64(m.TruePositives+m.TrueNegatives) / float64(labelled)
		precision := float64(0)
		if m.TruePositives+m.FalsePositives > 0 {
			precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
		}
		fmt.Fprintf(out, "   Accuracy:   %.4f\n", accuracy)
		fmt.Fprintf(out, "   Precision:  %.4f  (of approvals, how many were approved historically)\n", precision)
	}

	m.mu.Lock()
	latencies := append([]time.Duration(nil), m.latencies...)
	m.mu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Fprintf(out, "\nPERFORMANCE\n")
	fmt.Fprintf(out, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Fprintf(out, "   p50 Latency:      %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Fprintf(out, "   p95 Latency:      %v\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Fprintf(out, "   p99 Latency:      %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
		fmt.Fprintf(out, "   Throughput:       %.2f lookups/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}
	fmt.Fprintln(out)
}

// sortedKeys is used for stable report output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
