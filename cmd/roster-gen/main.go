// Command roster-gen writes a synthetic student roster CSV for local testing.
//
// Usage:
//
//	go run ./cmd/roster-gen -students 500 -out data/students.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
)

var (
	branches   = []string{"CSE", "ECE", "MECH", "CIVIL", "EEE"}
	sections   = []string{"A", "B", "C"}
	firstNames = []string{"Asha", "Ravi", "Meera", "Arjun", "Kiran", "Divya", "Rahul", "Sneha", "Vikram", "Ananya"}
	lastNames  = []string{"Rao", "Sharma", "Iyer", "Patel", "Nair", "Reddy", "Gupta", "Das"}
)

func main() {
	students := flag.Int("students", 200, "Number of students to generate")
	out := flag.String("out", "data/students.csv", "Output CSV path (- for stdout)")
	seed := flag.Int64("seed", 1, "Random seed; the same seed produces the same roster")
	flag.Parse()

	if *students <= 0 {
		log.Fatalf("students must be positive")
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	rng := rand.New(rand.NewSource(*seed))
	counts, err := writeRoster(w, rng, *students)
	if err != nil {
		log.Fatalf("Failed to write roster: %v", err)
	}

	log.Printf("=== Generation Complete ===")
	log.Printf("Students: %d", *students)
	for _, b := range branches {
		log.Printf("  %-6s %d", b, counts[b])
	}
}

// writeRoster writes n rows and returns the number of students per branch.
// Roughly one guardian in five is reachable by SMS instead of email.
func writeRoster(w io.Writer, rng *rand.Rand, n int) (map[string]int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"student_id", "name", "branch", "section", "parent_email"}); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(branches))
	for i := 1; i <= n; i++ {
		branch := branches[rng.Intn(len(branches))]
		section := sections[rng.Intn(len(sections))]
		name := fmt.Sprintf("%s %s", firstNames[rng.Intn(len(firstNames))], lastNames[rng.Intn(len(lastNames))])

		contact := fmt.Sprintf("guardian-%04d@example.com", i)
		if rng.Intn(5) == 0 {
			contact = fmt.Sprintf("+1555%07d", i)
		}

		if err := cw.Write([]string{fmt.Sprint(i), name, branch, section, contact}); err != nil {
			return nil, err
		}
		counts[branch]++
	}

	cw.Flush()
	return counts, cw.Error()
}
