package ai

import "context"

// CompleteJSON sends prompt with a structured output hint and decodes the
// reply into out. Errors are either *CompletionError or *ParseFailure;
// every caller defines its own fallback.
func CompleteJSON(
	ctx context.Context,
	client CompletionClient,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	opts = append([]GenerateOption{WithFormat(name, description, out)}, opts...)
	raw, err := client.Complete(ctx, prompt, opts...)
	if err != nil {
		return err
	}
	return ParseInto(raw, out)
}
