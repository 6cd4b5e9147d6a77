package tree

import (
	"math"
	"math/rand/v2"
	"sort"
)

// 分割基準
const (
	CriterionSquaredError  = "squared_error"
	CriterionFriedmanMSE   = "friedman_mse"
	CriterionAbsoluteError = "absolute_error"
)

// minGain より小さい改善しか得られない分割は行わない
const minGain = 1e-12

// builder は深さ優先で木を成長させ、ノードを平坦なスライスに追加する
type builder struct {
	cols        [][]float64 // 特徴量ごとの列（読み取り専用、木の間で共有される）
	y           []float64
	criterion   string
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	nodes       []Node
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	pos       int // sorted[:pos] が左の子
	gain      float64
	sorted    []int
}

// grow は idx の標本でノードを作り、そのインデックスを返す
func (b *builder) grow(idx []int, depth int) int {
	impurity, value := b.nodeStats(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Left: -1, Right: -1, Value: value, Impurity: impurity, NSamples: len(idx)})

	if (b.maxDepth > 0 && depth >= b.maxDepth) ||
		len(idx) < b.minSplit || len(idx) < 2*b.minLeaf || impurity <= minGain {
		return id
	}

	best, ok := b.bestSplit(idx, impurity)
	if !ok {
		return id
	}

	left := append([]int(nil), best.sorted[:best.pos]...)
	right := append([]int(nil), best.sorted[best.pos:]...)
	b.importances[best.feature] += best.gain

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// features は分割候補の特徴量を返す。maxFeatures が特徴量数未満なら無作為に選ぶ。
func (b *builder) features() []int {
	p := len(b.cols)
	if b.maxFeatures <= 0 || b.maxFeatures >= p {
		all := make([]int, p)
		for j := range all {
			all[j] = j
		}
		return all
	}
	chosen := b.rng.Perm(p)[:b.maxFeatures]
	sort.Ints(chosen)
	return chosen
}

// bestSplit は全候補特徴量の中で不純度の減少（標本数で重み付け）が最大の分割を探す。
// 同点の場合は先に見つかった特徴量・閾値を採用する。
func (b *builder) bestSplit(idx []int, impurity float64) (split, bool) {
	n := len(idx)
	parentCost := impurity * float64(n)
	best := split{gain: minGain}
	found := false

	for _, f := range b.features() {
		x := b.cols[f]
		sorted := append([]int(nil), idx...)
		sort.SliceStable(sorted, func(a, c int) bool { return x[sorted[a]] < x[sorted[c]] })
		if x[sorted[0]] == x[sorted[n-1]] {
			continue
		}

		var leftCost, rightCost []float64
		if b.criterion == CriterionAbsoluteError {
			leftCost, rightCost = absoluteCosts(sorted, b.y)
		}

		var sumLeft float64
		sumTotal := 0.0
		for _, i := range sorted {
			sumTotal += b.y[i]
		}
		var sqLeft, sqTotal float64
		for _, i := range sorted {
			sqTotal += b.y[i] * b.y[i]
		}

		for pos := 1; pos < n; pos++ {
			yi := b.y[sorted[pos-1]]
			sumLeft += yi
			sqLeft += yi * yi
			if pos < b.minLeaf || n-pos < b.minLeaf {
				continue
			}
			if x[sorted[pos-1]] == x[sorted[pos]] {
				continue
			}

			nl, nr := float64(pos), float64(n-pos)
			var gain float64
			switch b.criterion {
			case CriterionAbsoluteError:
				gain = parentCost - leftCost[pos] - rightCost[pos]
			case CriterionFriedmanMSE:
				// Friedman (2001) の改善量: nl*nr/n * (平均の差)²
				diff := nr*sumLeft - nl*(sumTotal-sumLeft)
				gain = diff * diff / (nl * nr * float64(n))
			default:
				sseLeft := sqLeft - sumLeft*sumLeft/nl
				sumRight := sumTotal - sumLeft
				sseRight := (sqTotal - sqLeft) - sumRight*sumRight/nr
				gain = parentCost - sseLeft - sseRight
			}

			if gain > best.gain {
				threshold := x[sorted[pos-1]]/2 + x[sorted[pos]]/2
				if threshold == x[sorted[pos]] {
					threshold = x[sorted[pos-1]]
				}
				best = split{
					feature:   f,
					threshold: threshold,
					pos:       pos,
					gain:      gain,
					sorted:    sorted,
				}
				found = true
			}
		}
	}
	return best, found
}

// nodeStats はノードの不純度と予測値を返す。
// squared_error/friedman_mse は分散と平均、absolute_error は中央値からの平均絶対偏差と中央値。
func (b *builder) nodeStats(idx []int) (impurity, value float64) {
	n := float64(len(idx))
	if b.criterion == CriterionAbsoluteError {
		ys := make([]float64, len(idx))
		for k, i := range idx {
			ys[k] = b.y[i]
		}
		sort.Float64s(ys)
		m := medianSorted(ys)
		var dev float64
		for _, v := range ys {
			dev += math.Abs(v - m)
		}
		return dev / n, m
	}

	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	mean := sum / n
	var ss float64
	for _, i := range idx {
		ss += (b.y[i] - mean) * (b.y[i] - mean)
	}
	return ss / n, mean
}

// absoluteCosts は各分割位置での左右の子の絶対偏差の総和を返す。
// leftCost[pos] は sorted[:pos]、rightCost[pos] は sorted[pos:] の値。
func absoluteCosts(sorted []int, y []float64) (leftCost, rightCost []float64) {
	n := len(sorted)
	leftCost = make([]float64, n+1)
	rightCost = make([]float64, n+1)

	window := make([]float64, 0, n)
	for pos := 1; pos <= n; pos++ {
		window = insertSorted(window, y[sorted[pos-1]])
		leftCost[pos] = sumAbsDev(window)
	}
	window = window[:0]
	for pos := n - 1; pos >= 0; pos-- {
		window = insertSorted(window, y[sorted[pos]])
		rightCost[pos] = sumAbsDev(window)
	}
	return leftCost, rightCost
}

func insertSorted(s []float64, v float64) []float64 {
	k := sort.SearchFloat64s(s, v)
	s = append(s, 0)
	copy(s[k+1:], s[k:])
	s[k] = v
	return s
}

func sumAbsDev(sorted []float64) float64 {
	m := medianSorted(sorted)
	var dev float64
	for _, v := range sorted {
		dev += math.Abs(v - m)
	}
	return dev
}

func medianSorted(s []float64) float64 {
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
