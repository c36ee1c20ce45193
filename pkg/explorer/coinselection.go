package explorer

import (
	"errors"
	"sort"
)

// ErrInsufficientFunds ...
var ErrInsufficientFunds = errors.New(
	"error on target amount: total utxo amount does not cover target amount",
)

// SelectUnspents performs a coin selection over the given list of Utxos and
// returns a subset of them of type targetAsset to cover the targetAmount.
// The native coin is selected with an empty targetAsset.
func SelectUnspents(
	utxos []Utxo,
	targetAmount uint64,
	targetAsset string,
) (coins []Utxo, change uint64, err error) {
	selectableUtxos := make([]Utxo, 0, len(utxos))
	totalAmount := uint64(0)

	for i := range utxos {
		utxo := utxos[i]
		if utxo.Asset() == targetAsset {
			selectableUtxos = append(selectableUtxos, utxo)
		}
	}

	indexes := getCoinsIndexes(targetAmount, selectableUtxos)

	if len(indexes) <= 0 {
		return nil, 0, ErrInsufficientFunds
	}

	selectedUtxos := make([]Utxo, 0, len(indexes))
	for _, v := range indexes {
		totalAmount += selectableUtxos[v].Value()
		selectedUtxos = append(selectedUtxos, selectableUtxos[v])
	}

	coins = selectedUtxos
	change = totalAmount - targetAmount

	return
}

// getCoinsIndexes method returns utxo indexes that are going to be selected
// the goal of the selection strategy is to select as less as possible utxo's
// until a 10x ratio
func getCoinsIndexes(targetAmount uint64, utxos []Utxo) []int {
	sort.Slice(utxos, func(i, j int) bool {
		return utxos[i].Value() > utxos[j].Value()
	})

	utxosValues := make([]uint64, 0, len(utxos))
	for _, v := range utxos {
		utxosValues = append(utxosValues, v.Value())
	}

	// actual strategy calculation output
	list := getBestCombination(utxosValues, targetAmount)

	// since list variable contains values,
	// indexes holding those values needs to be calculated
	return findIndexes(list, utxosValues)
}

func findIndexes(list []uint64, utxosValues []uint64) []int {
	var indexes []int
loop:
	for _, v := range list {
		for i, v1 := range utxosValues {
			if v == v1 {
				if isIndexOccupied(i, indexes) {
					continue
				}
				indexes = append(indexes, i)
				continue loop
			}
		}
	}
	return indexes
}

func isIndexOccupied(i int, list []int) bool {
	for _, v := range list {
		if v == i {
			return true
		}
	}
	return false
}

// getCombination is calculating all combinations for 'size' the elements of
// src array.
// number of combination formula -> len(src)! / size! * (len(src) - size)!
func getCombination(src []uint64, size int, offset int, partial []uint64) [][]uint64 {
	result := [][]uint64{}
	if size == 0 {
		temp := make([]uint64, len(partial))
		copy(temp, partial)
		return append(result, temp)
	}
	for i := offset; i <= len(src)-size; i++ {
		partial = append(partial, src[i])
		temp := getCombination(src, size-1, i+1, partial)
		result = append(result, temp...)
		partial = partial[:len(partial)-1]
	}
	return result
}

func sum(items []uint64) uint64 {
	var total uint64
	for _, v := range items {
		total += v
	}
	return total
}

// getBestCombination method implement strategy of selecting as less as
// possible elements from items slice so that sum of elements is equal or
// greater than target, with 10x ratio.
// It uses below logic:
// 1. set size = 1
// 2. uses recursion (getCombination) to get all combinations for size
// elements in the input array.
// 3. check each combination if meet the requirements from 0 -> i, if yes,
// return it (finish)
// 4. if none of combination matches, then size++ and go to step 2.
func getBestCombination(items []uint64, target uint64) []uint64 {
	result := [][]uint64{}
	for i := 1; i < len(items)+1; i++ {
		result = append(result, getCombination(items, i, 0, nil)...)
		for j := 0; j < len(result); j++ {
			total := sum(result[j])
			if total < target {
				continue
			}
			if total == target {
				return result[j]
			}
			if total <= target*10 {
				return result[j]
			}
		}
	}

	// if there is no good combination just return first which is greater
	for _, v := range items {
		if v > target {
			return []uint64{v}
		}
	}

	return []uint64{}
}
