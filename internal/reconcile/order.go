package reconcile

import "github.com/roach88/hivepress/internal/bridge"

// parentFirst returns replies reordered so that any reply whose parent is
// also in the list comes after that parent. Otherwise fetch order is kept:
// a reply only moves when it has to be pulled ahead of its child. Parent
// cycles are broken at the reply that closes them.
func parentFirst(replies []bridge.RemoteReply) []bridge.RemoteReply {
	pos := make(map[string]int, len(replies))
	for i, r := range replies {
		if _, dup := pos[r.DedupKey()]; !dup {
			pos[r.DedupKey()] = i
		}
	}

	out := make([]bridge.RemoteReply, 0, len(replies))
	emitted := make([]bool, len(replies))
	for i := range replies {
		if emitted[i] {
			continue
		}

		// Walk up to the first ancestor that is absent or already placed.
		chain := []int{i}
		onChain := map[int]bool{i: true}
		for {
			p, ok := pos[replies[chain[len(chain)-1]].ParentKey()]
			if !ok || emitted[p] || onChain[p] {
				break
			}
			chain = append(chain, p)
			onChain[p] = true
		}

		for j := len(chain) - 1; j >= 0; j-- {
			out = append(out, replies[chain[j]])
			emitted[chain[j]] = true
		}
	}
	return out
}
