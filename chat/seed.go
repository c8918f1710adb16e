package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Loads conversation definitions from a JSON file (an array of conversations) in to the store. Existing conversations with the same id are replaced; their messages are kept.
func LoadConversationsJSON(ctx context.Context, store Store, p string) (int, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}

	var convs []Conversation
	if err := json.Unmarshal(raw, &convs); err != nil {
		return 0, fmt.Errorf("parsing conversations file: %w", err)
	}

	for i := range convs {
		if err := store.PutConversation(ctx, &convs[i]); err != nil {
			return i, fmt.Errorf("conversation %d: %w", i, err)
		}
	}
	return len(convs), nil
}
