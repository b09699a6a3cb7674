package swap

import "strings"

// Token program log lines that prove tokens actually moved. A venue program
// showing up in the logs is not enough on its own: plenty of transactions
// reference a DEX program incidentally (account creation, tick updates)
// without swapping anything.
const (
	transferLogLine        = "Program log: Instruction: Transfer"
	transferCheckedLogLine = "Program log: Instruction: TransferChecked"
)

// IdentifyDex scans a transaction's emitted log lines for the known venues,
// in priority order, and returns the first venue whose program invocation
// co-occurs with a token transfer log. Returns ok=false when no known venue
// is referenced.
func IdentifyDex(logLines []string) (Venue, bool) {
	if len(logLines) == 0 {
		return "", false
	}

	hasTransfer := false
	for _, line := range logLines {
		if strings.Contains(line, transferLogLine) || strings.Contains(line, transferCheckedLogLine) {
			hasTransfer = true
			break
		}
	}
	if !hasTransfer {
		return "", false
	}

	for _, venue := range venueOrder {
		program := venueCapabilities[venue].program.String()
		for _, line := range logLines {
			if strings.Contains(line, "Program "+program+" invoke") {
				return venue, true
			}
		}
	}
	return "", false
}
