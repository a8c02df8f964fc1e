//go:build ignore

// Generates a synthetic regulation corpus in the JSONL format the
// indexer accepts, for load testing and benchmarking.
// Usage: go run scripts/generate-test-corpus.go -docs 5000 -output testdata/bench-corpus.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numDocs = flag.Int("docs", 5000, "Number of documents to generate")
	output  = flag.String("output", "testdata/bench-corpus.jsonl", "Output JSONL file")
	seed    = flag.Int64("seed", 42, "Random seed for reproducibility")
)

type document struct {
	ID           string `json:"id"`
	SourceLabel  string `json:"source_label"`
	Section      string `json:"section"`
	Content      string `json:"content"`
	AuthorityTag string `json:"authority_tag,omitempty"`
	Store        string `json:"store,omitempty"`
}

var chapters = []struct {
	number int
	topic  string
}{
	{41, "protection against electric shock"},
	{42, "protection against thermal effects"},
	{43, "protection against overcurrent"},
	{52, "selection and erection of wiring systems"},
	{54, "earthing arrangements and protective conductors"},
	{55, "other equipment"},
	{64, "initial verification"},
	{70, "special installations or locations"},
}

var subjects = []string{
	"circuits supplying fixed equipment",
	"socket-outlet circuits rated up to 32 A",
	"cables concealed in walls at a depth of less than 50 mm",
	"luminaires installed in escape routes",
	"equipment within a bathroom zone",
	"conductors connected in parallel",
	"circuits supplying electric vehicle charging points",
	"distribution boards in domestic premises",
}

var requirements = []string{
	"shall be provided with additional protection by an RCD with a rated residual operating current not exceeding 30 mA",
	"shall be disconnected within the time stated for the nominal voltage of the circuit",
	"shall be selected so that the current-carrying capacity is not less than the design current of the circuit",
	"shall be protected against fault current by a device installed at the origin of the circuit",
	"shall be sized such that the voltage drop does not exceed the values given for lighting and other uses",
	"shall be erected so as to avoid damage from thermal expansion and contraction",
	"shall be verified by inspection and testing before being placed in service",
	"shall incorporate a means of isolation capable of being secured in the open position",
}

var guidance = []string{
	"In practice the designer should confirm the earth fault loop impedance by measurement rather than relying on calculated values alone.",
	"Table values assume an ambient temperature of 30 degrees; apply rating factors for grouped circuits or thermal insulation.",
	"Where harmonic currents are expected the neutral conductor may need to be sized above the line conductors.",
	"The disconnection time requirement is normally satisfied by the overcurrent device provided the loop impedance is low enough.",
	"Periodic inspection intervals should reflect the environment and the quality of the original installation.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if dir := filepath.Dir(*output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "creating output directory: %v\n", err)
			os.Exit(1)
		}
	}
	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 0; i < *numDocs; i++ {
		if err := enc.Encode(generate(rng, i)); err != nil {
			fmt.Fprintf(os.Stderr, "writing document %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents in %s\n", *numDocs, *output)
}

func generate(rng *rand.Rand, i int) document {
	ch := chapters[rng.Intn(len(chapters))]
	section := fmt.Sprintf("%d%d.%d.%d", ch.number, rng.Intn(10), 1+rng.Intn(9), 1+rng.Intn(20))

	// Roughly one guidance document for every four regulations, to
	// mirror the shape of a real two-store corpus.
	if i%5 == 4 {
		return document{
			ID:          fmt.Sprintf("gn:%s:%d", section, i),
			SourceLabel: "Guidance Note",
			Section:     section,
			Content: fmt.Sprintf("Guidance on %s. %s %s",
				ch.topic, guidance[rng.Intn(len(guidance))], guidance[rng.Intn(len(guidance))]),
			AuthorityTag: "guidance",
			Store:        "guidance-notes",
		}
	}

	return document{
		ID:          fmt.Sprintf("reg:%s", section),
		SourceLabel: "Wiring Regulations",
		Section:     section,
		Content: fmt.Sprintf("Regulation %s. Concerning %s: %s %s.",
			section, ch.topic, subjects[rng.Intn(len(subjects))], requirements[rng.Intn(len(requirements))]),
		AuthorityTag: "normative",
		Store:        "wiring-regulations",
	}
}
