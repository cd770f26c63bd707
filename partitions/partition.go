// Package partitions assigns mesh elements to ranks and builds the
// structured quad and hex topologies used to drive side exchange.
package partitions

import (
	"fmt"

	"github.com/notargets/SEKernel/exchange"
)

// Partition is the set of elements owned by one rank.
type Partition struct {
	ID int

	Elements    []int // Global element indices in this partition
	NumElements int
	MaxElements int // Largest partition size, the padded block size on a device
}

// PartitionLayout is the complete element-to-rank decomposition of a mesh.
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP has %d entries for %d elements", len(pl.EToP), pl.TotalElements)
	}
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d listed",
				p.ID, p.NumElements, len(p.Elements))
		}
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		for _, e := range p.Elements {
			if pl.GetPartition(e) != p.ID {
				return fmt.Errorf("partition %d lists element %d owned by %d",
					p.ID, e, pl.GetPartition(e))
			}
		}
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, mesh has %d", total, pl.TotalElements)
	}
	return nil
}

// Assign writes the element owners into the topology.
func (pl *PartitionLayout) Assign(t *exchange.Topology) error {
	if t.NEl != pl.TotalElements {
		return fmt.Errorf("%w: topology has %d elements, layout %d",
			exchange.ErrTopology, t.NEl, pl.TotalElements)
	}
	copy(t.ElemToRank, pl.EToP)
	return nil
}

// PartitionStats summarizes load balance and communication of a layout.
type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements

	LocalFaces  int // conforming faces with both sides on one partition
	RemoteFaces int // conforming faces cut by the decomposition
}

// PartitionStatistics computes load balance metrics and, given the mesh
// topology, counts how many shared faces the decomposition cuts.
func (pl *PartitionLayout) PartitionStatistics(t *exchange.Topology) PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   pl.TotalElements,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}
	for _, p := range pl.Partitions {
		stats.MinElements = min(stats.MinElements, p.NumElements)
		stats.MaxElements = max(stats.MaxElements, p.NumElements)
	}
	stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements

	if t == nil {
		return stats
	}
	for e := 0; e < t.NEl; e++ {
		for s := 1; s <= t.SidesPerElement(); s++ {
			sd := t.Side(e, s)
			// count each face once, from its lower (element, side) end
			if sd.Physical() || sd.NeighborElement < e ||
				(sd.NeighborElement == e && sd.NeighborSide < s) {
				continue
			}
			if pl.GetPartition(e) == pl.GetPartition(sd.NeighborElement) {
				stats.LocalFaces++
			} else {
				stats.RemoteFaces++
			}
		}
	}
	return stats
}
