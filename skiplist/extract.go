package skiplist

// ExtractMin removes and returns the smallest key still present. It
// retries against a concurrent extractor racing for the same minimum:
// losing a race just means retrying against whatever is now the
// smallest.
func (s *SkipList[K, V]) ExtractMin() (key K, ref *Ref[V], ok bool, err error) {
	for {
		n := s.head.next[0].Ptr()
		if n == nil {
			var zero K
			return zero, nil, false, nil
		}
		if _, marked := n.next[0].Load(); marked {
			continue
		}
		ref, ok, err := s.Extract(n.key)
		if err != nil {
			var zero K
			return zero, nil, false, err
		}
		if !ok {
			continue
		}
		return n.key, ref, true, nil
	}
}

// ExtractMax removes and returns the largest key still present.
// Finding it costs a full level-0 walk, since towers carry forward
// pointers only.
func (s *SkipList[K, V]) ExtractMax() (key K, ref *Ref[V], ok bool, err error) {
	for {
		var last *Node[K, V]
		for n := s.head.next[0].Ptr(); n != nil; n = n.next[0].Ptr() {
			if _, marked := n.next[0].Load(); !marked {
				last = n
			}
		}
		if last == nil {
			var zero K
			return zero, nil, false, nil
		}
		ref, ok, err := s.Extract(last.key)
		if err != nil {
			var zero K
			return zero, nil, false, err
		}
		if !ok {
			continue
		}
		return last.key, ref, true, nil
	}
}
