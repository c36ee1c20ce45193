package esplora

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// minFeeSatsPerKilobyte is the rate returned when the explorer has no
// estimate at all, ie. 1 sat/vB.
const minFeeSatsPerKilobyte = 1000

// EstimateFees returns the fee rate expected to get a transaction confirmed
// within the given number of blocks, expressed in satoshis per kilobyte of
// virtual size.
func (e *esplora) EstimateFees(targetBlocks int) (float64, error) {
	url := fmt.Sprintf("%s/fee-estimates", e.apiURL)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf(resp)
	}

	estimates := map[string]float64{}
	if err := json.Unmarshal([]byte(resp), &estimates); err != nil {
		return 0, err
	}

	return feeForTarget(estimates, targetBlocks), nil
}

// feeForTarget picks the rate of the largest quoted target not exceeding the
// requested one. Esplora omits targets it has no samples for, so a missing
// target falls back to the closest faster quote, and an empty set of quotes
// to the minimum relay rate.
func feeForTarget(estimates map[string]float64, targetBlocks int) float64 {
	bestTarget := -1
	bestRate := 0.0
	fastestTarget := -1
	fastestRate := 0.0

	for rawTarget, satsPerVByte := range estimates {
		target, err := strconv.Atoi(rawTarget)
		if err != nil {
			continue
		}
		if fastestTarget < 0 || target < fastestTarget {
			fastestTarget = target
			fastestRate = satsPerVByte
		}
		if target <= targetBlocks && target > bestTarget {
			bestTarget = target
			bestRate = satsPerVByte
		}
	}

	if bestTarget < 0 {
		if fastestTarget < 0 {
			return minFeeSatsPerKilobyte
		}
		return fastestRate * 1000
	}
	return bestRate * 1000
}
