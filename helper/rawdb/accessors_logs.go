package rawdb

import (
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/types"
	"github.com/umbracle/fastrlp"
)

// Posting is one entry of a log index shard: the position of a matching log
type Posting struct {
	BlockNumber uint64
	LogIndex    uint64
}

var postingArenaPool fastrlp.ArenaPool

var postingParserPool fastrlp.ParserPool

func marshalPostings(postings []Posting) []byte {
	ar := postingArenaPool.Get()
	defer postingArenaPool.Put(ar)

	vv := ar.NewArray()

	for _, p := range postings {
		v := ar.NewArray()
		v.Set(ar.NewUint(p.BlockNumber))
		v.Set(ar.NewUint(p.LogIndex))
		vv.Set(v)
	}

	return vv.MarshalTo(nil)
}

func unmarshalPostings(data []byte) ([]Posting, error) {
	p := postingParserPool.Get()
	defer postingParserPool.Put(p)

	v, err := p.Parse(data)
	if err != nil {
		return nil, err
	}

	elems, err := v.GetElems()
	if err != nil {
		return nil, err
	}

	postings := make([]Posting, len(elems))

	for indx, elem := range elems {
		pair, err := elem.GetElems()
		if err != nil {
			return nil, err
		}

		if postings[indx].BlockNumber, err = pair[0].GetUint64(); err != nil {
			return nil, err
		}

		if postings[indx].LogIndex, err = pair[1].GetUint64(); err != nil {
			return nil, err
		}
	}

	return postings, nil
}

// ReadPostings reads the posting list of one log index shard. A missing
// shard reads as an empty list.
func ReadPostings(db kvdb.KVReader, addr types.Address, topicIdx byte, topic types.Hash) ([]Posting, error) {
	data, ok, err := db.Get(logIndexKey(addr, topicIdx, topic))
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, nil
	}

	return unmarshalPostings(data)
}

// AppendPostings extends a shard's posting list. Postings are only ever
// appended; the chain has no reorgs.
func AppendPostings(
	db kvdb.KVReader,
	batch kvdb.KVWriter,
	addr types.Address,
	topicIdx byte,
	topic types.Hash,
	newPostings []Posting,
) error {
	current, err := ReadPostings(db, addr, topicIdx, topic)
	if err != nil {
		return err
	}

	current = append(current, newPostings...)

	return batch.Set(logIndexKey(addr, topicIdx, topic), marshalPostings(current))
}
