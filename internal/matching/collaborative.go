package matching

// InteractionMatrix maps user id → entity id → interaction strength.
// It is a read-only snapshot supplied by the fetch layer.
type InteractionMatrix map[string]map[string]float64

// HistorySize returns how many distinct entities a user interacted with.
func (m InteractionMatrix) HistorySize(userID string) int {
	n := 0
	for _, w := range m[userID] {
		if w > 0 {
			n++
		}
	}
	return n
}

// CollaborativeIndex holds the row and column views of an interaction matrix.
type CollaborativeIndex struct {
	rows map[string]map[string]float64
	cols map[string]map[string]float64
}

// NewCollaborativeIndex indexes the positive entries of m. The matrix is not
// retained.
func NewCollaborativeIndex(m InteractionMatrix) *CollaborativeIndex {
	ix := &CollaborativeIndex{
		rows: make(map[string]map[string]float64, len(m)),
		cols: make(map[string]map[string]float64),
	}
	for user, row := range m {
		for entity, w := range row {
			if w <= 0 {
				continue
			}
			if ix.rows[user] == nil {
				ix.rows[user] = make(map[string]float64)
			}
			ix.rows[user][entity] = w
			if ix.cols[entity] == nil {
				ix.cols[entity] = make(map[string]float64)
			}
			ix.cols[entity][user] = w
		}
	}
	return ix
}

// UserEmbedding places a user in user space: one component per other user,
// equal to the cosine similarity of their interaction rows.
func (ix *CollaborativeIndex) UserEmbedding(userID string) map[string]float64 {
	row := ix.rows[userID]
	if len(row) == 0 {
		return nil
	}
	emb := make(map[string]float64)
	for other, otherRow := range ix.rows {
		if other == userID {
			continue
		}
		if sim := sparseCosine(row, otherRow); sim > 0 {
			emb[other] = sim
		}
	}
	return emb
}

// EntityEmbedding places an entity in user space: its interaction column.
func (ix *CollaborativeIndex) EntityEmbedding(entityID string) map[string]float64 {
	return ix.cols[entityID]
}

// CollaborativeScore is the cosine of a user and an entity embedding. Cold
// start on either side scores 0.
func CollaborativeScore(userEmbedding, entityEmbedding map[string]float64) float64 {
	return sparseCosine(userEmbedding, entityEmbedding)
}

// EntitySimilarity is the cosine of two interaction columns: how much the
// same users engaged with both entities.
func (ix *CollaborativeIndex) EntitySimilarity(a, b string) float64 {
	return sparseCosine(ix.cols[a], ix.cols[b])
}

// Engagements returns how many users engaged with an entity.
func (ix *CollaborativeIndex) Engagements(entityID string) int {
	return len(ix.cols[entityID])
}
