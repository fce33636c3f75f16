package session

import "context"

// Ask sends a single user prompt with no history and returns the reply.
// Nothing is recorded; errors follow the same rules as RunTurn.
func Ask(ctx context.Context, c Completer, prompt string) (string, error) {
	reply, err := c.Complete(ctx, []Turn{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", normalizeError(ctx, err)
	}
	return reply, nil
}
