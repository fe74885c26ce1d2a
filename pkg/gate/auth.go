package gate

// AuthState enumerates the session authentication lifecycle.
//
// Unauthenticated and Authorized are the only stable rest states; the
// intermediate states are expected to resolve within one user interaction.
type AuthState string

const (
	// StateUnauthenticated means no provider connection is active.
	StateUnauthenticated AuthState = "unauthenticated"
	// StateConnecting means the transport is up but the account is not signed in.
	StateConnecting AuthState = "connecting"
	// StateCodeRequested means a login code has been sent to the account.
	StateCodeRequested AuthState = "code_requested"
	// StateAwaitingPassword means sign-in needs the second factor password.
	StateAwaitingPassword AuthState = "awaiting_password"
	// StateAuthorized means the session is signed in and usable.
	StateAuthorized AuthState = "authorized"
)

// UserProfile is the connected account identity exposed at the boundary.
type UserProfile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// AuthStatus is a point-in-time snapshot of the session state machine.
type AuthStatus struct {
	State AuthState    `json:"state"`
	User  *UserProfile `json:"user,omitempty"`
}

// Authorized reports whether the snapshot state allows provider calls.
func (s AuthStatus) Authorized() bool {
	return s.State == StateAuthorized
}
