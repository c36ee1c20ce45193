package transactionutil

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

var (
	// ErrMissingPsbt ...
	ErrMissingPsbt = errors.New("missing psbt in envelope")
	// ErrInvalidEnvelope ...
	ErrInvalidEnvelope = errors.New("invalid envelope format")
)

// Envelope is the serialized form a partial transaction travels in between
// the build, sign and broadcast phases. Psbt holds the base64 encoded packet,
// Assets an opaque JSON payload describing any non-native outputs.
type Envelope struct {
	Psbt   string `json:"psbt"`
	Assets string `json:"assets,omitempty"`
}

// NewEnvelope returns an envelope wrapping the given base64 psbt and asset
// payload.
func NewEnvelope(psbtBase64, assets string) *Envelope {
	return &Envelope{
		Psbt:   psbtBase64,
		Assets: assets,
	}
}

// FromPacket serializes the given packet into a new envelope.
func FromPacket(ptx *psbt.Packet, assets string) (*Envelope, error) {
	if ptx == nil {
		return nil, ErrMissingPsbt
	}
	psbtBase64, err := ptx.B64Encode()
	if err != nil {
		return nil, err
	}
	return NewEnvelope(psbtBase64, assets), nil
}

// ToPacket decodes the wrapped psbt back into a packet.
func (e *Envelope) ToPacket() (*psbt.Packet, error) {
	if e == nil || strings.TrimSpace(e.Psbt) == "" {
		return nil, ErrMissingPsbt
	}
	return psbt.NewFromRawBytes(strings.NewReader(e.Psbt), true)
}

// Serialize returns the JSON encoding of the envelope.
func (e *Envelope) Serialize() (string, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ParseEnvelope decodes a JSON encoded envelope, making sure it wraps a
// non empty psbt.
func ParseEnvelope(raw string) (*Envelope, error) {
	envelope := &Envelope{}
	if err := json.Unmarshal([]byte(raw), envelope); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if strings.TrimSpace(envelope.Psbt) == "" {
		return nil, ErrMissingPsbt
	}
	return envelope, nil
}

// FinalizeAndExtractTransactionOpts is the struct given to FinalizeAndExtractTransaction method
type FinalizeAndExtractTransactionOpts struct {
	PsbtBase64 string
}

func (o FinalizeAndExtractTransactionOpts) validate() error {
	if _, err := psbt.NewFromRawBytes(
		strings.NewReader(o.PsbtBase64), true,
	); err != nil {
		return err
	}
	return nil
}

// FinalizeAndExtractTransaction attempts to finalize the provided partial
// transaction and eventually extracts the final transaction and returns
// it in hex string format, along with its transaction id
func FinalizeAndExtractTransaction(opts FinalizeAndExtractTransactionOpts) (string, string, error) {
	if err := opts.validate(); err != nil {
		return "", "", err
	}
	ptx, _ := psbt.NewFromRawBytes(strings.NewReader(opts.PsbtBase64), true)

	if err := psbt.MaybeFinalizeAll(ptx); err != nil {
		return "", "", err
	}

	tx, err := psbt.Extract(ptx)
	if err != nil {
		return "", "", err
	}

	buf := bytes.NewBuffer(nil)
	if err := tx.Serialize(buf); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String(), nil
}
