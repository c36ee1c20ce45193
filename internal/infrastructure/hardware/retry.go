package hardware

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/ports"
)

const (
	maxAttempts = 4
	// operations waiting on a physical confirmation get a single retry, a
	// device that already showed the prompt once must not loop on it.
	interactiveAttempts = 2

	backoffBase       = 250 * time.Millisecond
	backoffMultiplier = 2
	backoffMax        = 2 * time.Second

	opConnect = "connect"
)

// WithRetry decorates the given signer with the device retry policy:
// transient failures are retried with exponential backoff, an explicit user
// decline is never retried and tears the connection down.
func WithRetry(signer ports.HardwareSigner, name string) ports.HardwareSigner {
	return &retryingSigner{signer: signer, name: name}
}

type retryingSigner struct {
	signer ports.HardwareSigner
	name   string
}

func (r *retryingSigner) GetAddress(
	ctx context.Context, path string,
) (string, error) {
	var address string
	err := r.retry(ctx, "get address", maxAttempts, func() error {
		var err error
		address, err = r.signer.GetAddress(ctx, path)
		return err
	})
	return address, err
}

func (r *retryingSigner) GetPublicKey(
	ctx context.Context, path string,
) (*ports.PublicKeyReply, error) {
	var reply *ports.PublicKeyReply
	err := r.retry(ctx, "get public key", maxAttempts, func() error {
		var err error
		reply, err = r.signer.GetPublicKey(ctx, path)
		return err
	})
	return reply, err
}

func (r *retryingSigner) SignMessage(
	ctx context.Context, path string, message []byte,
) (string, error) {
	var signature string
	err := r.retry(ctx, "sign message", interactiveAttempts, func() error {
		var err error
		signature, err = r.signer.SignMessage(ctx, path, message)
		return err
	})
	return signature, err
}

func (r *retryingSigner) SignTypedData(
	ctx context.Context, path string, domainHash, messageHash []byte,
) (string, error) {
	var signature string
	err := r.retry(ctx, "sign typed data", interactiveAttempts, func() error {
		var err error
		signature, err = r.signer.SignTypedData(
			ctx, path, domainHash, messageHash,
		)
		return err
	})
	return signature, err
}

func (r *retryingSigner) SignEvmTransaction(
	ctx context.Context, path string, rawTx []byte,
) (*ports.EvmSignature, error) {
	var reply *ports.EvmSignature
	err := r.retry(ctx, "sign evm transaction", interactiveAttempts, func() error {
		var err error
		reply, err = r.signer.SignEvmTransaction(ctx, path, rawTx)
		return err
	})
	return reply, err
}

func (r *retryingSigner) SignUtxoPsbt(
	ctx context.Context, psbtBase64, walletPolicy string,
) ([]ports.InputSignature, error) {
	var signatures []ports.InputSignature
	err := r.retry(ctx, "sign psbt", interactiveAttempts, func() error {
		var err error
		signatures, err = r.signer.SignUtxoPsbt(ctx, psbtBase64, walletPolicy)
		return err
	})
	return signatures, err
}

func (r *retryingSigner) Connect(ctx context.Context) error {
	return r.retry(ctx, opConnect, maxAttempts, func() error {
		return r.signer.Connect(ctx)
	})
}

func (r *retryingSigner) IsConnected() bool {
	return r.signer.IsConnected()
}

func (r *retryingSigner) Dispose() {
	r.signer.Dispose()
}

func (r *retryingSigner) retry(
	ctx context.Context, op string, attempts int, fn func() error,
) error {
	requestId := uuid.NewString()
	backoff := backoffBase

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ports.ErrUserCancelled) {
			log.WithField("request_id", requestId).Debugf(
				"%s: %s declined on device", r.name, op,
			)
			r.signer.Dispose()
			return err
		}
		if errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts {
			break
		}

		log.WithError(err).WithField("request_id", requestId).Warnf(
			"%s: %s failed, retrying in %s", r.name, op, backoff,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= backoffMultiplier
		if backoff > backoffMax {
			backoff = backoffMax
		}

		// a dropped connection retries like any transient failure, the next
		// attempt goes through a reconnection handshake first
		if op != opConnect && errors.Is(err, ports.ErrDeviceNotConnected) {
			if connErr := r.signer.Connect(ctx); connErr != nil {
				log.WithError(connErr).WithField("request_id", requestId).Debugf(
					"%s: reconnection failed", r.name,
				)
			}
		}
	}
	return err
}
