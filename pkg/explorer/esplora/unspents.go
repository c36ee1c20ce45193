package esplora

import (
	"fmt"
	"net/http"

	"github.com/keyring-labs/keyringd/pkg/explorer"
)

func (e *esplora) GetUnspents(addr string) ([]explorer.Utxo, error) {
	return e.getUnspents(addr)
}

func (e *esplora) GetUnspentsForAddresses(
	addresses []string,
) ([]explorer.Utxo, error) {
	chUnspents := make(chan []explorer.Utxo)
	chErr := make(chan error, 1)
	unspents := make([]explorer.Utxo, 0)

	for _, addr := range addresses {
		go e.getUnspentsForAddress(addr, chUnspents, chErr)

		select {
		case err := <-chErr:
			close(chErr)
			close(chUnspents)
			return nil, err
		case unspentsForAddress := <-chUnspents:
			unspents = append(unspents, unspentsForAddress...)
		}
	}

	return unspents, nil
}

func (e *esplora) getUnspents(addr string) ([]explorer.Utxo, error) {
	url := fmt.Sprintf("%s/address/%s/utxo", e.apiURL, addr)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf(resp)
	}

	payload, err := parseUtxoList(resp)
	if err != nil {
		return nil, err
	}

	unspents := make([]explorer.Utxo, len(payload))
	chUnspents := make(chan explorer.Utxo)
	chErr := make(chan error, 1)

	for i := range payload {
		out := payload[i]
		go e.getUtxoDetails(out, chUnspents, chErr)

		select {
		case err := <-chErr:
			close(chErr)
			close(chUnspents)
			return nil, fmt.Errorf("error on retrieving utxos: %s", err)
		case unspent := <-chUnspents:
			unspents[i] = unspent
		}
	}

	return unspents, nil
}

func (e *esplora) getUnspentsForAddress(
	addr string,
	chUnspents chan []explorer.Utxo,
	chErr chan error,
) {
	unspents, err := e.getUnspents(addr)
	if err != nil {
		chErr <- err
		return
	}
	chUnspents <- unspents
}

func (e *esplora) getUtxoDetails(
	out utxoPayload,
	chUnspents chan explorer.Utxo,
	chErr chan error,
) {
	prevoutTxHex, err := e.getTransactionHex(out.Txid)
	if err != nil {
		chErr <- err
		return
	}
	trx, err := decodeTx(prevoutTxHex)
	if err != nil {
		chErr <- err
		return
	}
	if int(out.Vout) >= len(trx.TxOut) {
		chErr <- fmt.Errorf(
			"missing output %d in funding transaction %s", out.Vout, out.Txid,
		)
		return
	}
	script := trx.TxOut[out.Vout].PkScript

	chUnspents <- explorer.NewWitnessUtxo(
		out.Txid, out.Vout, out.Value, "", script, out.Status.Confirmed,
	)
}
