package extsort

// quickSort orders items by key in place. The pivot is the middle element;
// i and j scan inward from both ends and swap pairs on the wrong side.
func quickSort(items []item) {
	if len(items) < 2 {
		return
	}

	pivot := items[len(items)/2].key
	i, j := 0, len(items)-1
	for i <= j {
		for items[i].key < pivot {
			i++
		}
		for items[j].key > pivot {
			j--
		}
		if i <= j {
			items[i], items[j] = items[j], items[i]
			i++
			j--
		}
	}

	if j > 0 {
		quickSort(items[:j+1])
	}
	if i < len(items)-1 {
		quickSort(items[i:])
	}
}
