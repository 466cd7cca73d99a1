package blockchain

import (
	"fmt"
	"sort"

	"github.com/minichain-lab/minichain/helper/rawdb"
	"github.com/minichain-lab/minichain/types"
)

// LogFilter selects logs by block range, emitting address and topics.
// Each topic slot may be empty (wildcard) or hold a set of accepted values.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64

	Addresses []types.Address
	Topics    [][]types.Hash
}

// Match checks the filter's address and topic constraints against one log
func (f *LogFilter) Match(log *types.Log) bool {
	if len(f.Addresses) > 0 {
		match := false

		for _, addr := range f.Addresses {
			if addr == log.Address {
				match = true

				break
			}
		}

		if !match {
			return false
		}
	}

	if len(f.Topics) > len(log.Topics) {
		return false
	}

	for idx, topicSet := range f.Topics {
		if len(topicSet) == 0 {
			// wildcard slot
			continue
		}

		match := false

		for _, topic := range topicSet {
			if log.Topics[idx] == topic {
				match = true

				break
			}
		}

		if !match {
			return false
		}
	}

	return true
}

// GetLogs evaluates a filter over the sealed chain: posting lists are
// intersected when an address constraint allows it, the candidates are
// materialised and re-checked, and results come back in block then
// log-index order.
func (b *Blockchain) GetLogs(filter *LogFilter) ([]*types.Log, error) {
	head := b.Header().Number

	from, to := filter.FromBlock, filter.ToBlock
	if to == 0 {
		to = head
	}

	if from > to {
		return nil, fmt.Errorf("%w: fromBlock %d is above toBlock %d", ErrBadFilter, from, to)
	}

	if to > head {
		to = head
	}

	b.metrics.logQueryInc()

	if len(filter.Addresses) == 0 {
		return b.scanLogs(filter, from, to)
	}

	postings, err := b.candidatePostings(filter, from, to)
	if err != nil {
		return nil, err
	}

	logs := []*types.Log{}

	for _, posting := range postings {
		log, err := b.logAt(posting)
		if err != nil {
			return nil, err
		}

		if log != nil && filter.Match(log) {
			logs = append(logs, log)
		}
	}

	return logs, nil
}

// candidatePostings intersects the index shards selected by the filter:
// across topic slots a log must appear in every constrained slot, within a
// slot any accepted value matches, and any filter address matches.
func (b *Blockchain) candidatePostings(filter *LogFilter, from, to uint64) ([]rawdb.Posting, error) {
	merged := map[rawdb.Posting]struct{}{}

	for _, addr := range filter.Addresses {
		var (
			candidate map[rawdb.Posting]struct{}
			bounded   bool
		)

		for idx, topicSet := range filter.Topics {
			if len(topicSet) == 0 || idx > 3 {
				continue
			}

			// union within the slot
			slotSet := map[rawdb.Posting]struct{}{}

			for _, topic := range topicSet {
				postings, err := rawdb.ReadPostings(b.db, addr, byte(idx), topic)
				if err != nil {
					return nil, err
				}

				for _, p := range postings {
					slotSet[p] = struct{}{}
				}
			}

			// intersection across slots
			if !bounded {
				candidate = slotSet
				bounded = true
			} else {
				for p := range candidate {
					if _, ok := slotSet[p]; !ok {
						delete(candidate, p)
					}
				}
			}
		}

		if !bounded {
			// no topic constraint, fall back to the address shard
			postings, err := rawdb.ReadPostings(b.db, addr, rawdb.LogIndexAddressOnly, types.ZeroHash)
			if err != nil {
				return nil, err
			}

			candidate = map[rawdb.Posting]struct{}{}
			for _, p := range postings {
				candidate[p] = struct{}{}
			}
		}

		for p := range candidate {
			merged[p] = struct{}{}
		}
	}

	postings := make([]rawdb.Posting, 0, len(merged))

	for p := range merged {
		if p.BlockNumber >= from && p.BlockNumber <= to {
			postings = append(postings, p)
		}
	}

	sort.Slice(postings, func(i, j int) bool {
		if postings[i].BlockNumber != postings[j].BlockNumber {
			return postings[i].BlockNumber < postings[j].BlockNumber
		}

		return postings[i].LogIndex < postings[j].LogIndex
	})

	return postings, nil
}

// logAt materialises the log at one chain position
func (b *Blockchain) logAt(posting rawdb.Posting) (*types.Log, error) {
	block, err := b.GetBlockByNumber(posting.BlockNumber)
	if err != nil {
		return nil, err
	}

	for _, tx := range block.Transactions {
		receipt, err := b.GetReceipt(tx.Hash())
		if err != nil {
			return nil, err
		}

		for _, log := range receipt.Logs {
			if log.LogIndex == posting.LogIndex {
				return log, nil
			}
		}
	}

	return nil, nil
}

// scanLogs walks the block range directly, pre-filtering with the header
// bloom; used when no address constraint narrows the posting lists
func (b *Blockchain) scanLogs(filter *LogFilter, from, to uint64) ([]*types.Log, error) {
	logs := []*types.Log{}

	for n := from; n <= to; n++ {
		block, err := b.GetBlockByNumber(n)
		if err != nil {
			return nil, err
		}

		if !bloomMatches(filter, &block.Header.LogsBloom) {
			continue
		}

		for _, tx := range block.Transactions {
			receipt, err := b.GetReceipt(tx.Hash())
			if err != nil {
				return nil, err
			}

			for _, log := range receipt.Logs {
				if filter.Match(log) {
					logs = append(logs, log)
				}
			}
		}
	}

	return logs, nil
}

// bloomMatches checks that every constrained topic slot has at least one
// accepted value present in the block bloom
func bloomMatches(filter *LogFilter, bloom *types.Bloom) bool {
	for _, topicSet := range filter.Topics {
		if len(topicSet) == 0 {
			continue
		}

		match := false

		for _, topic := range topicSet {
			if bloom.Contains(topic.Bytes()) {
				match = true

				break
			}
		}

		if !match {
			return false
		}
	}

	return true
}
