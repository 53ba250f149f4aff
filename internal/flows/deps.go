package flows

// Deps groups flow dependency sets. The root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	VerifyPIN    VerifyPINDeps
	SecondFactor SecondFactorDeps
	Authorize    AuthorizeDeps
}
