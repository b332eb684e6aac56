package suggest

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

// initTokenEncoder initializes the tiktoken encoder (lazy initialization)
func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts the number of tokens in a text using tiktoken
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		// Fallback to estimation if tiktoken fails
		return estimateTokens(text)
	}

	return len(tokenEncoder.Encode(text, nil, nil))
}

// CountRequestTokens estimates the token footprint of a full edit request,
// used to log and enforce the payload budget. Memory snapshots never enter
// the payload, so only the fields actually sent are counted.
func CountRequestTokens(req Request) int {
	total := CountTokens(req.PageContent)
	total += CountTokens(req.EditRequest)
	total += CountTokens(req.HighlightedContent)
	for _, turn := range req.EditMemory {
		total += CountTokens(turn.Prompt)
		total += CountTokens(turn.Response)
	}
	if req.Preferences != nil {
		total += CountTokens(req.Preferences.WritingStyle)
		for _, f := range req.Preferences.PreferredFormats {
			total += CountTokens(f)
		}
		for _, instr := range req.Preferences.CommonInstructions {
			total += CountTokens(instr)
		}
	}
	return total
}

// estimateTokens approximates token count as chars/4
func estimateTokens(text string) int {
	return len(text) / 4
}
