package application

import "errors"

var (
	// ErrUnknownSignerKind ...
	ErrUnknownSignerKind = errors.New("signer kind not supported")
	// ErrSignerKindMismatch is returned when the requested signer kind does
	// not match the type of the active account.
	ErrSignerKindMismatch = errors.New(
		"signer kind does not match the active account type",
	)
	// ErrNotHardwareKind ...
	ErrNotHardwareKind = errors.New(
		"account type is not a hardware signer kind",
	)
	// ErrHardwareSignerNotAvailable is returned when no adapter is registered
	// for the requested hardware kind.
	ErrHardwareSignerNotAvailable = errors.New(
		"no signer registered for the hardware kind",
	)
	// ErrUnsupportedScriptType is returned when a transaction spends or pays
	// a script the signing device cannot handle.
	ErrUnsupportedScriptType = errors.New(
		"script type not supported by the signing device",
	)
)
