// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

// ProviderType names the mechanism a session was established with.
type ProviderType string

const (
	// ProviderTypeLocal is a username and password sign-in.
	ProviderTypeLocal ProviderType = "local"
	// ProviderTypeMicrosoft is a Microsoft identity platform sign-in.
	ProviderTypeMicrosoft ProviderType = "microsoft"
)

// String returns the string representation of the ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// FederatedLoginState is a step of the authorization-code handshake.
//
//	Anonymous -> Pending -> Authenticated
//	                     -> RejectedStateMismatch
//	                     -> RejectedProviderError
type FederatedLoginState string

const (
	FederatedLoginAnonymous             FederatedLoginState = "anonymous"
	FederatedLoginPending               FederatedLoginState = "pending"
	FederatedLoginAuthenticated         FederatedLoginState = "authenticated"
	FederatedLoginRejectedStateMismatch FederatedLoginState = "rejected_state_mismatch"
	FederatedLoginRejectedProviderError FederatedLoginState = "rejected_provider_error"
)

// IsTerminal reports whether no further transition is possible.
func (s FederatedLoginState) IsTerminal() bool {
	switch s {
	case FederatedLoginAuthenticated, FederatedLoginRejectedStateMismatch, FederatedLoginRejectedProviderError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the FederatedLoginState.
func (s FederatedLoginState) String() string {
	return string(s)
}

// FederatedClaims are the identity attributes extracted from a verified ID token.
type FederatedClaims struct {
	Subject string // Stable identifier (Microsoft 'oid', falling back to 'sub').
	Email   string // Preferred username or email.
	Name    string
}
