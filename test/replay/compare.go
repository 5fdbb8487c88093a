package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

// CompareResult holds the outcome of comparing replayed fills against DB rows.
type CompareResult struct {
	Matching  []string        `json:"matching"`
	Missing   []string        `json:"missing"`   // in replay but not in DB
	Extra     []string        `json:"extra"`     // in DB but not in replay
	Divergent []DivergentFill `json:"divergent"` // same log, different fields
}

// DivergentFill records a field-level mismatch between replay and DB.
type DivergentFill struct {
	Key         string `json:"key"`
	Field       string `json:"field"`
	ReplayValue string `json:"replay_value"`
	DBValue     string `json:"db_value"`
}

// HasMismatch returns true if any fill is missing, extra, or divergent.
func (r *CompareResult) HasMismatch() bool {
	return len(r.Missing) > 0 || len(r.Extra) > 0 || len(r.Divergent) > 0
}

func fillKey(p model.BaseEventParams) string {
	return fmt.Sprintf("%s:%d:%d", p.TxHash, p.LogIndex, p.BatchIndex)
}

type fillEntry struct {
	OrderID  string
	Maker    string
	Taker    string
	Price    string
	Currency string
	Contract string
	TokenID  string
	Amount   string
}

func toEntry(e model.FillEvent) fillEntry {
	return fillEntry{
		OrderID:  e.OrderID,
		Maker:    strings.ToLower(e.Maker),
		Taker:    strings.ToLower(e.Taker),
		Price:    e.Price,
		Currency: strings.ToLower(e.Currency),
		Contract: strings.ToLower(e.Contract),
		TokenID:  e.TokenID,
		Amount:   e.Amount,
	}
}

// compareFills compares replay-derived fills against the persisted rows,
// keyed on the log identity (tx_hash, log_index, batch_index).
func compareFills(replayFills, dbFills []model.FillEvent) CompareResult {
	replayMap := make(map[string]fillEntry, len(replayFills))
	for _, e := range replayFills {
		replayMap[fillKey(e.BaseEventParams)] = toEntry(e)
	}
	dbMap := make(map[string]fillEntry, len(dbFills))
	for _, e := range dbFills {
		dbMap[fillKey(e.BaseEventParams)] = toEntry(e)
	}

	var result CompareResult

	for key, re := range replayMap {
		de, found := dbMap[key]
		if !found {
			result.Missing = append(result.Missing, key)
			continue
		}
		before := len(result.Divergent)
		checkField := func(field, replayVal, dbVal string) {
			if replayVal != dbVal {
				result.Divergent = append(result.Divergent, DivergentFill{
					Key:         key,
					Field:       field,
					ReplayValue: replayVal,
					DBValue:     dbVal,
				})
			}
		}
		checkField("order_id", re.OrderID, de.OrderID)
		checkField("maker", re.Maker, de.Maker)
		checkField("taker", re.Taker, de.Taker)
		checkField("price", re.Price, de.Price)
		checkField("currency", re.Currency, de.Currency)
		checkField("contract", re.Contract, de.Contract)
		checkField("token_id", re.TokenID, de.TokenID)
		checkField("amount", re.Amount, de.Amount)
		if len(result.Divergent) == before {
			result.Matching = append(result.Matching, key)
		}
	}

	for key := range dbMap {
		if _, found := replayMap[key]; !found {
			result.Extra = append(result.Extra, key)
		}
	}

	// Sort for deterministic output
	sort.Strings(result.Matching)
	sort.Strings(result.Missing)
	sort.Strings(result.Extra)
	sort.Slice(result.Divergent, func(i, j int) bool {
		if result.Divergent[i].Key == result.Divergent[j].Key {
			return result.Divergent[i].Field < result.Divergent[j].Field
		}
		return result.Divergent[i].Key < result.Divergent[j].Key
	})

	return result
}

// printTextReport writes a human-readable report to w.
func printTextReport(w io.Writer, eventsFile string, replayCount, dbCount int, result CompareResult) {
	fmt.Fprintln(w, "=== Replay Verification Report ===")
	fmt.Fprintf(w, "Events file: %s\n", eventsFile)
	fmt.Fprintf(w, "Replay fills: %d\n", replayCount)
	fmt.Fprintf(w, "DB fills: %d\n", dbCount)
	fmt.Fprintf(w, "Matching: %d\n", len(result.Matching))
	fmt.Fprintf(w, "Missing: %d\n", len(result.Missing))
	fmt.Fprintf(w, "Extra: %d\n", len(result.Extra))
	fmt.Fprintf(w, "Divergent: %d\n", len(result.Divergent))

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "\n--- Missing (in replay but not in DB) ---")
		for _, key := range result.Missing {
			fmt.Fprintf(w, "  %s\n", key)
		}
	}
	if len(result.Extra) > 0 {
		fmt.Fprintln(w, "\n--- Extra (in DB but not in replay) ---")
		for _, key := range result.Extra {
			fmt.Fprintf(w, "  %s\n", key)
		}
	}
	if len(result.Divergent) > 0 {
		fmt.Fprintln(w, "\n--- Divergent (field mismatches) ---")
		for _, d := range result.Divergent {
			fmt.Fprintf(w, "  %s: %s replay=%q db=%q\n", d.Key, d.Field, d.ReplayValue, d.DBValue)
		}
	}

	fmt.Fprintln(w)
	if !result.HasMismatch() {
		fmt.Fprintln(w, "Result: MATCH")
	} else {
		fmt.Fprintln(w, "Result: MISMATCH")
	}
}

// printJSONReport writes a JSON report to w.
func printJSONReport(w io.Writer, eventsFile string, replayCount, dbCount int, result CompareResult) error {
	report := struct {
		EventsFile  string        `json:"events_file"`
		ReplayCount int           `json:"replay_fills"`
		DBCount     int           `json:"db_fills"`
		Result      string        `json:"result"`
		Compare     CompareResult `json:"compare"`
	}{
		EventsFile:  eventsFile,
		ReplayCount: replayCount,
		DBCount:     dbCount,
		Compare:     result,
	}
	if result.HasMismatch() {
		report.Result = "MISMATCH"
	} else {
		report.Result = "MATCH"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
