package isoforest

import "math"

// averagePathLengthConst is c(n), the expected path length of an
// unsuccessful BST search, used to normalize raw path lengths into the
// [0, 1] anomaly score range (Liu, Ting & Zhou, 2008, eq. 1).
func averagePathLengthConst(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	const eulerGamma = 0.5772156649015329
	return 2*(math.Log(float64(n-1))+eulerGamma) - 2*float64(n-1)/float64(n)
}

type treeNode struct {
	leaf        bool
	size        int // number of points that reached this leaf at build time (set on leaves only)
	splitDim    int
	splitValue  float64
	left, right *treeNode
}

type isolationTree struct {
	root      *treeNode
	heightLim int
}

func buildTree(points [][]float64, depth, heightLim int, rng randSource) *treeNode {
	n := len(points)
	if depth >= heightLim || n <= 1 {
		return &treeNode{leaf: true, size: n}
	}

	dims := len(points[0])
	dim := rng.Intn(dims)

	lo, hi := points[0][dim], points[0][dim]
	for _, p := range points {
		if p[dim] < lo {
			lo = p[dim]
		}
		if p[dim] > hi {
			hi = p[dim]
		}
	}
	if lo == hi {
		return &treeNode{leaf: true, size: n}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, p := range points {
		if p[dim] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{leaf: true, size: n}
	}

	return &treeNode{
		leaf:       false,
		splitDim:   dim,
		splitValue: split,
		left:       buildTree(left, depth+1, heightLim, rng),
		right:      buildTree(right, depth+1, heightLim, rng),
	}
}

// pathLength walks x down the tree, adding the expected remaining depth
// (averagePathLengthConst of the leaf's subsample size) once a leaf is
// reached, per the reference algorithm's PathLength procedure.
func pathLength(n *treeNode, x []float64, depth int) float64 {
	if n.leaf {
		return float64(depth) + averagePathLengthConst(n.size)
	}
	if x[n.splitDim] < n.splitValue {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

type randSource interface {
	Intn(n int) int
	Float64() float64
}

type forest struct {
	trees         []*isolationTree
	avgPathLenAll float64
}

// fit builds an isolation forest of numTrees trees, each grown on a
// random subsample of min(subsampleSize, len(points)) points, matching
// the source's IsolationForest(n_estimators, max_samples) construction.
func fit(points [][]float64, numTrees, subsampleSize int, rng randSource) *forest {
	if len(points) == 0 {
		return &forest{avgPathLenAll: averagePathLengthConst(1)}
	}
	sample := subsampleSize
	if sample > len(points) || sample <= 0 {
		sample = len(points)
	}
	heightLim := int(math.Ceil(math.Log2(float64(sample))))

	trees := make([]*isolationTree, numTrees)
	for t := 0; t < numTrees; t++ {
		sub := sampleWithoutReplacement(points, sample, rng)
		trees[t] = &isolationTree{root: buildTree(sub, 0, heightLim, rng), heightLim: heightLim}
	}
	return &forest{trees: trees, avgPathLenAll: averagePathLengthConst(sample)}
}

func sampleWithoutReplacement(points [][]float64, k int, rng randSource) [][]float64 {
	n := len(points)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k && i < n; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := make([][]float64, k)
	for i := 0; i < k; i++ {
		out[i] = points[idx[i]]
	}
	return out
}

// decisionFunction returns 1 - s(x), where s(x) = 2^(-E[h(x)]/c(n)) is
// the Liu, Ting & Zhou anomaly score (near 1 for points isolated after
// few splits). The result lies in [0, 1): higher for typical points and
// near 0 for anomalies. Callers invert it
// (1-decisionFunction) to match this module's "higher = more anomalous"
// scoring convention.
func (f *forest) decisionFunction(x []float64) float64 {
	if len(f.trees) == 0 || f.avgPathLenAll == 0 {
		return 1
	}
	var sum float64
	for _, t := range f.trees {
		sum += pathLength(t.root, x, 0)
	}
	avg := sum / float64(len(f.trees))
	return 1 - math.Pow(2, -avg/f.avgPathLenAll)
}
