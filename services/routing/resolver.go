package routing

import "github.com/modelgate/modelgate/models"

// ResolutionSource tags how a model name was resolved
type ResolutionSource string

const (
	// SourceOverride means a caller-supplied forced model name was used
	SourceOverride ResolutionSource = "override"

	// SourceDirect means the requested name is listed by some provider
	SourceDirect ResolutionSource = "direct"

	// SourceRename means a rename rule supplied the upstream name
	SourceRename ResolutionSource = "rename"

	// SourcePassthrough means no rule applied and the name was kept as-is
	SourcePassthrough ResolutionSource = "passthrough"
)

// Resolution is the outcome of model-name resolution
type Resolution struct {
	// Model is the upstream model identifier to request
	Model string

	// Source tags which resolution step produced Model
	Source ResolutionSource

	// Rule is the winning pattern when Source is SourceRename
	Rule string

	// Ambiguous lists equally specific patterns beaten only by lexical
	// order; non-empty signals an administrator configuration problem
	Ambiguous []string
}

// ResolveModel maps a requested model name to the upstream name to use.
//
// An explicit override wins outright. A name that any provider directly lists
// is kept unchanged, so a catch-all rename rule never overrides a model that
// is genuinely supported; renaming exists to normalize unsupported
// identifiers, not to universally rewrite traffic. Otherwise the
// best-matching rename rule applies, and with no matching rule the requested
// name passes through untouched.
func ResolveModel(requested, explicitOverride string, rules models.RenameRules, providers []models.ProviderConfig) Resolution {
	if explicitOverride != "" {
		return Resolution{Model: explicitOverride, Source: SourceOverride}
	}

	for i := range providers {
		if providers[i].SupportsModel(requested) {
			return Resolution{Model: requested, Source: SourceDirect}
		}
	}

	if match, ok := MatchRenameRule(requested, rules); ok {
		return Resolution{
			Model:     match.Replacement,
			Source:    SourceRename,
			Rule:      match.Pattern,
			Ambiguous: match.Contenders,
		}
	}

	return Resolution{Model: requested, Source: SourcePassthrough}
}
