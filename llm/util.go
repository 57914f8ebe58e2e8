package llm

import (
	"bytes"
	"io"

	"github.com/quietridge/copilot-core/coreerr"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// rewriteUnauthenticated implements the §7 rule that a 401 from any LLM
// provider is an operator misconfiguration, not a client fault: it is
// rewritten as a server-side Config error before it ever reaches invoke.go's
// fallback logic.
func rewriteUnauthenticated(err error, provider string) error {
	ce, ok := coreerr.As(err)
	if !ok || ce.Kind != coreerr.Unauthenticated {
		return err
	}
	return coreerr.New(coreerr.Config, "verify API key").WithProvider(provider)
}
