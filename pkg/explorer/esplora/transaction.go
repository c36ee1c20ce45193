package esplora

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/keyring-labs/keyringd/pkg/explorer"
)

// GetTransaction returns the parsed transaction along with its confirmation
// status, given its hash.
func (e *esplora) GetTransaction(hash string) (explorer.Transaction, error) {
	txHex, err := e.getTransactionHex(hash)
	if err != nil {
		return nil, err
	}
	confirmed, err := e.isTransactionConfirmed(hash)
	if err != nil {
		return nil, err
	}

	return NewTxFromHex(txHex, confirmed)
}

func (e *esplora) GetTransactionHex(hash string) (string, error) {
	return e.getTransactionHex(hash)
}

func (e *esplora) IsTransactionConfirmed(hash string) (bool, error) {
	return e.isTransactionConfirmed(hash)
}

func (e *esplora) GetTransactionStatus(hash string) (map[string]interface{}, error) {
	return e.getTransactionStatus(hash)
}

func (e *esplora) BroadcastTransaction(txHex string) (string, error) {
	url := fmt.Sprintf("%s/tx", e.apiURL)
	headers := map[string]string{
		"Content-Type": "text/plain",
	}

	status, resp, err := e.request("POST", url, txHex, headers)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf(resp)
	}

	return resp, nil
}

func (e *esplora) getTransactionHex(hash string) (string, error) {
	url := fmt.Sprintf("%s/tx/%s/hex", e.apiURL, hash)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf(resp)
	}

	return resp, nil
}

func (e *esplora) isTransactionConfirmed(hash string) (bool, error) {
	trxStatus, err := e.getTransactionStatus(hash)
	if err != nil {
		return false, err
	}

	var isConfirmed bool
	switch confirmed := trxStatus["confirmed"].(type) {
	case bool:
		isConfirmed = confirmed
	}

	return isConfirmed, nil
}

func (e *esplora) getTransactionStatus(hash string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/tx/%s/status", e.apiURL, hash)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf(resp)
	}

	var trxStatus map[string]interface{}
	if err := json.Unmarshal([]byte(resp), &trxStatus); err != nil {
		return nil, err
	}

	return trxStatus, nil
}
