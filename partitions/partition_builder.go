package partitions

import (
	"fmt"
)

// PartitionBuilder assigns NumElements elements to NumPartitions ranks.
type PartitionBuilder struct {
	NumElements   int
	NumPartitions int
	Strategy      PartitionStrategy
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy maps a strategy name to its value.
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch name {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumElements < 1 {
		return nil, fmt.Errorf("cannot partition %d elements", pb.NumElements)
	}
	numPartitions := pb.NumPartitions
	if numPartitions < 1 {
		numPartitions = 1
	}
	if numPartitions > pb.NumElements {
		return nil, fmt.Errorf("%d partitions for %d elements leaves partitions empty",
			numPartitions, pb.NumElements)
	}

	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(eToP, numPartitions)

	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumElements)
	}
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	eToP := make([]int, pb.NumElements)

	switch pb.Strategy {
	case BlockPartition:
		// Sizes differ by at most one; the first NumElements%numPartitions
		// partitions take the extra element.
		base, extra := pb.NumElements/numPartitions, pb.NumElements%numPartitions
		i := 0
		for p := 0; p < numPartitions; p++ {
			n := base
			if p < extra {
				n++
			}
			for ; n > 0; n-- {
				eToP[i] = p
				i++
			}
		}

	case RoundRobin:
		for i := 0; i < pb.NumElements; i++ {
			eToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unsupported strategy %v", pb.Strategy)
	}

	return eToP, nil
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Elements: make([]int, 0)}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}
