package embed

// DenseAdapter adapts any Embedder to collection.DenseEmbedder's narrower
// method names (Dimension/ModelID vs. Dimensions/ModelName) so the vector
// store can hand whichever backend it constructed straight to
// collection.WithDenseEmbedder without the collection package depending
// on this package's concrete types.
type DenseAdapter struct {
	Embedder
}

// NewDenseAdapter wraps e for use as a collection.DenseEmbedder.
func NewDenseAdapter(e Embedder) DenseAdapter { return DenseAdapter{Embedder: e} }

// Dimension implements collection.DenseEmbedder.
func (d DenseAdapter) Dimension() int { return d.Embedder.Dimensions() }

// ModelID implements collection.DenseEmbedder.
func (d DenseAdapter) ModelID() string { return d.Embedder.ModelName() }
