package chat

// TruncateHistory truncates a transcript based on token and turn limits.
// It applies the turn limit first, then the token limit, removing oldest turns as needed.
// A limit of zero or less disables that limit. The most recent turn is always kept,
// and the result never starts with an assistant turn unless that is all that is left.
func TruncateHistory(history []Turn, tokenLimit, turnLimit int) []Turn {
	if len(history) == 0 {
		return history
	}

	if turnLimit > 0 && len(history) > turnLimit {
		history = history[len(history)-turnLimit:]
	}

	if tokenLimit > 0 {
		totalTokens := 0
		for _, t := range history {
			totalTokens += t.TokenCount
		}
		for totalTokens > tokenLimit && len(history) > 1 {
			totalTokens -= history[0].TokenCount
			history = history[1:]
		}
	}

	// The model API expects the context to open with a user turn.
	if len(history) < 2 || (turnLimit <= 0 && tokenLimit <= 0) {
		return history
	}
	for len(history) > 1 && history[0].Role != RoleUser {
		history = history[1:]
	}

	return history
}

// AppendTurn appends a turn and applies the limits in one step.
func AppendTurn(history []Turn, turn Turn, tokenLimit, turnLimit int) []Turn {
	return TruncateHistory(append(history, turn), tokenLimit, turnLimit)
}
