package index

import (
	"fmt"
	"log/slog"

	"pesadb/storage_engine/filemanager"
	"pesadb/types"
)

/*
BPlusTree is one index: a tree of IndexPages rooted at rootPageID.
Leaves hold [key][row locator] entries and are chained through their
sibling links for range scans. Internal nodes hold separator keys with
one child per entry; the last entry's NULL sentinel key carries the
rightmost child, so a node with k keys has k+1 slots.

order is the maximum number of children per internal node; leaves hold
at most order-1 keys. Splits promote a (split key, new page) pair
upward, and splitting the root grows the tree by one level.
*/

const DefaultOrder = 4

type BPlusTree struct {
	fileManager *filemanager.FileManager
	rootPageID  uint32
	order       int
	logger      *slog.Logger
}

type splitResult struct {
	key       types.Value
	newPageID uint32
}

// NewBPlusTree opens the tree rooted at rootPageID, or creates a fresh
// single-leaf tree when rootPageID is 0.
func NewBPlusTree(fm *filemanager.FileManager, rootPageID uint32, order int, logger *slog.Logger) (*BPlusTree, error) {
	if order < 3 {
		order = DefaultOrder
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &BPlusTree{
		fileManager: fm,
		rootPageID:  rootPageID,
		order:       order,
		logger:      logger.With("component", "bptree"),
	}
	if rootPageID == 0 {
		if err := t.createRoot(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *BPlusTree) RootPageID() uint32 { return t.rootPageID }

func (t *BPlusTree) createRoot() error {
	p, err := t.fileManager.AllocatePage()
	if err != nil {
		return fmt.Errorf("allocate root page: %w", err)
	}
	root := NewIndexPage(p)
	root.InitIndexHeader(IndexTypeRoot, 0)
	if err := t.fileManager.WritePageWithWAL(root.Page); err != nil {
		return err
	}
	t.rootPageID = root.ID
	return nil
}

func (t *BPlusTree) loadPage(pageID uint32) (*IndexPage, error) {
	p, err := t.fileManager.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	return NewIndexPage(p), nil
}

// Insert adds a key with its row locator. Returns false when the key
// already exists; a point search runs first, which is how unique
// constraints are enforced.
func (t *BPlusTree) Insert(key types.Value, value uint32) (bool, error) {
	if _, found, err := t.Search(key); err != nil {
		return false, err
	} else if found {
		return false, nil
	}

	root, err := t.loadPage(t.rootPageID)
	if err != nil {
		return false, err
	}
	split, err := t.insertRecursive(root, key, value)
	if err != nil {
		return false, err
	}

	if split != nil {
		if err := t.growRoot(split); err != nil {
			return false, err
		}
	}
	return true, nil
}

// growRoot replaces the root after a split: the new root is an
// internal node with the promoted key and two children.
func (t *BPlusTree) growRoot(split *splitResult) error {
	p, err := t.fileManager.AllocatePage()
	if err != nil {
		return fmt.Errorf("allocate new root: %w", err)
	}
	newRoot := NewIndexPage(p)
	newRoot.InitIndexHeader(IndexTypeInternal, 0)
	newRoot.InsertKeyValue(split.key, t.rootPageID, 0)
	newRoot.InsertKeyValue(types.NewNull(), split.newPageID, 1)

	if err := t.setParent(t.rootPageID, newRoot.ID); err != nil {
		return err
	}
	if err := t.setParent(split.newPageID, newRoot.ID); err != nil {
		return err
	}
	if err := t.fileManager.WritePageWithWAL(newRoot.Page); err != nil {
		return err
	}
	t.rootPageID = newRoot.ID
	t.logger.Debug("root split", "new_root", newRoot.ID)
	return nil
}

func (t *BPlusTree) insertRecursive(node *IndexPage, key types.Value, value uint32) (*splitResult, error) {
	if node.IsLeaf() {
		return t.insertLeaf(node, key, value)
	}

	childIndex := t.findChildIndex(node, key)
	_, childID, err := node.GetKeyValue(childIndex)
	if err != nil {
		return nil, err
	}
	child, err := t.loadPage(childID)
	if err != nil {
		return nil, err
	}

	split, err := t.insertRecursive(child, key, value)
	if err != nil || split == nil {
		return nil, err
	}

	// child split: absorb the promoted key here, or split ourselves
	if node.KeyCount() < t.order {
		return nil, t.insertInternal(node, childIndex, split)
	}
	return t.splitInternal(node, childIndex, split)
}

func (t *BPlusTree) insertLeaf(leaf *IndexPage, key types.Value, value uint32) (*splitResult, error) {
	insertPos := 0
	for i := 0; i < leaf.KeyCount(); i++ {
		existing, _, err := leaf.GetKeyValue(i)
		if err != nil {
			return nil, err
		}
		if key.Compare(existing, "<") {
			break
		}
		insertPos = i + 1
	}

	if leaf.KeyCount() < t.order-1 {
		if !leaf.InsertKeyValue(key, value, insertPos) {
			return nil, fmt.Errorf("leaf page %d out of space", leaf.ID)
		}
		return nil, t.fileManager.WritePageWithWAL(leaf.Page)
	}
	return t.splitLeaf(leaf, key, value, insertPos)
}

type entry struct {
	key   types.Value
	value uint32
}

func collectEntries(node *IndexPage) ([]entry, error) {
	entries := make([]entry, 0, node.KeyCount())
	for i := 0; i < node.KeyCount(); i++ {
		k, v, err := node.GetKeyValue(i)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: k, value: v})
	}
	return entries, nil
}

// rebuild wipes a node and refills it, reclaiming leaked data space.
// Leaf sibling links and the parent pointer survive.
func rebuild(node *IndexPage, indexType IndexPageType, entries []entry) error {
	parent := node.Parent()
	next := node.NextLeaf()
	prev := node.PrevLeaf()

	node.InitIndexHeader(indexType, parent)
	node.SetNextLeaf(next)
	node.SetPrevLeaf(prev)

	for i, e := range entries {
		if !node.InsertKeyValue(e.key, e.value, i) {
			return fmt.Errorf("page %d out of space during rebuild", node.ID)
		}
	}
	return nil
}

// splitLeaf moves the upper half of a full leaf (plus the new key)
// into a fresh leaf, relinks the sibling chain, and promotes the
// first key of the new leaf.
func (t *BPlusTree) splitLeaf(leaf *IndexPage, key types.Value, value uint32, insertPos int) (*splitResult, error) {
	entries, err := collectEntries(leaf)
	if err != nil {
		return nil, err
	}
	entries = append(entries[:insertPos], append([]entry{{key: key, value: value}}, entries[insertPos:]...)...)

	p, err := t.fileManager.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("allocate leaf page: %w", err)
	}
	newLeaf := NewIndexPage(p)
	newLeaf.InitIndexHeader(IndexTypeLeaf, leaf.Parent())

	splitPoint := len(entries) / 2
	splitKey := entries[splitPoint].key

	if err := rebuild(leaf, IndexTypeLeaf, entries[:splitPoint]); err != nil {
		return nil, err
	}
	for i, e := range entries[splitPoint:] {
		if !newLeaf.InsertKeyValue(e.key, e.value, i) {
			return nil, fmt.Errorf("new leaf page %d out of space", newLeaf.ID)
		}
	}

	// relink the sibling chain around the new leaf
	oldNext := leaf.NextLeaf()
	leaf.SetNextLeaf(newLeaf.ID)
	newLeaf.SetPrevLeaf(leaf.ID)
	newLeaf.SetNextLeaf(oldNext)
	if oldNext != 0 {
		nextPage, err := t.loadPage(oldNext)
		if err != nil {
			return nil, err
		}
		nextPage.SetPrevLeaf(newLeaf.ID)
		if err := t.fileManager.WritePageWithWAL(nextPage.Page); err != nil {
			return nil, err
		}
	}

	if err := t.fileManager.WritePageWithWAL(leaf.Page); err != nil {
		return nil, err
	}
	if err := t.fileManager.WritePageWithWAL(newLeaf.Page); err != nil {
		return nil, err
	}
	return &splitResult{key: splitKey, newPageID: newLeaf.ID}, nil
}

// insertInternal absorbs a child split into a node with room: a new
// entry (split key, old child) lands at the child's slot, and the
// entry after it takes the new page as its child.
func (t *BPlusTree) insertInternal(node *IndexPage, childIndex int, split *splitResult) error {
	_, oldChild, err := node.GetKeyValue(childIndex)
	if err != nil {
		return err
	}
	if !node.InsertKeyValue(split.key, oldChild, childIndex) {
		return fmt.Errorf("internal page %d out of space", node.ID)
	}
	if err := node.UpdateValue(childIndex+1, split.newPageID); err != nil {
		return err
	}
	if err := t.setParent(split.newPageID, node.ID); err != nil {
		return err
	}
	return t.fileManager.WritePageWithWAL(node.Page)
}

// splitInternal handles a child split when this node is already full:
// the promoted key is folded into the entry list, the list is halved
// around the median, and the median key moves up one level.
func (t *BPlusTree) splitInternal(node *IndexPage, childIndex int, split *splitResult) (*splitResult, error) {
	entries, err := collectEntries(node)
	if err != nil {
		return nil, err
	}
	oldChild := entries[childIndex].value
	entries = append(entries[:childIndex],
		append([]entry{{key: split.key, value: oldChild}}, entries[childIndex:]...)...)
	entries[childIndex+1].value = split.newPageID

	mid := (len(entries) - 1) / 2
	promoted := entries[mid].key

	p, err := t.fileManager.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("allocate internal page: %w", err)
	}
	right := NewIndexPage(p)
	right.InitIndexHeader(IndexTypeInternal, node.Parent())

	// left keeps entries below the median, closed by a sentinel that
	// carries the median's child; right takes everything above it.
	leftEntries := append(append([]entry{}, entries[:mid]...), entry{key: types.NewNull(), value: entries[mid].value})
	rightEntries := entries[mid+1:]

	if err := rebuild(node, IndexTypeInternal, leftEntries); err != nil {
		return nil, err
	}
	for i, e := range rightEntries {
		if !right.InsertKeyValue(e.key, e.value, i) {
			return nil, fmt.Errorf("internal page %d out of space", right.ID)
		}
	}

	// children that moved right need their parent pointers rewritten
	for _, e := range rightEntries {
		if err := t.setParent(e.value, right.ID); err != nil {
			return nil, err
		}
	}
	if err := t.setParent(split.newPageID, t.containingNode(node, right, split.newPageID)); err != nil {
		return nil, err
	}

	if err := t.fileManager.WritePageWithWAL(node.Page); err != nil {
		return nil, err
	}
	if err := t.fileManager.WritePageWithWAL(right.Page); err != nil {
		return nil, err
	}
	return &splitResult{key: promoted, newPageID: right.ID}, nil
}

// containingNode reports which of the two halves holds childID after a
// split, for parent-pointer fixup.
func (t *BPlusTree) containingNode(left, right *IndexPage, childID uint32) uint32 {
	for i := 0; i < right.KeyCount(); i++ {
		if _, v, err := right.GetKeyValue(i); err == nil && v == childID {
			return right.ID
		}
	}
	return left.ID
}

func (t *BPlusTree) setParent(pageID, parentID uint32) error {
	child, err := t.loadPage(pageID)
	if err != nil {
		return err
	}
	if child.Parent() == parentID {
		return nil
	}
	child.SetParent(parentID)
	return t.fileManager.WritePageWithWAL(child.Page)
}

// findChildIndex picks the child slot to descend into: the first
// separator the key sorts below, else the rightmost child.
func (t *BPlusTree) findChildIndex(node *IndexPage, key types.Value) int {
	count := node.KeyCount()
	for i := 0; i < count-1; i++ {
		sep, _, err := node.GetKeyValue(i)
		if err != nil {
			break
		}
		if key.Compare(sep, "<") {
			return i
		}
	}
	return count - 1
}

func (t *BPlusTree) findLeaf(key types.Value) (*IndexPage, error) {
	node, err := t.loadPage(t.rootPageID)
	if err != nil {
		return nil, err
	}
	for !node.IsLeaf() {
		_, childID, err := node.GetKeyValue(t.findChildIndex(node, key))
		if err != nil {
			return nil, err
		}
		node, err = t.loadPage(childID)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Search returns the row locator stored under key.
func (t *BPlusTree) Search(key types.Value) (uint32, bool, error) {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return 0, false, err
	}
	for i := 0; i < leaf.KeyCount(); i++ {
		k, v, err := leaf.GetKeyValue(i)
		if err != nil {
			return 0, false, err
		}
		if key.Compare(k, "=") {
			return v, true, nil
		}
	}
	return 0, false, nil
}

// RangeSearch collects row locators for keys in [start, end], walking
// the leaf sibling chain and stopping past end.
func (t *BPlusTree) RangeSearch(start, end types.Value) ([]uint32, error) {
	leaf, err := t.findLeaf(start)
	if err != nil {
		return nil, err
	}

	var results []uint32
	for leaf != nil {
		for i := 0; i < leaf.KeyCount(); i++ {
			k, v, err := leaf.GetKeyValue(i)
			if err != nil {
				return nil, err
			}
			if !k.Compare(start, ">=") {
				continue
			}
			if !k.Compare(end, "<=") {
				return results, nil
			}
			results = append(results, v)
		}
		next := leaf.NextLeaf()
		if next == 0 {
			break
		}
		leaf, err = t.loadPage(next)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Delete removes a key's leaf entry if present. No rebalancing or
// merge happens; the vacated data span inside the page is leaked.
func (t *BPlusTree) Delete(key types.Value) (bool, error) {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	for i := 0; i < leaf.KeyCount(); i++ {
		k, _, err := leaf.GetKeyValue(i)
		if err != nil {
			return false, err
		}
		if key.Compare(k, "=") {
			leaf.DeleteKey(i)
			if err := t.fileManager.WritePageWithWAL(leaf.Page); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Info reports tree parameters for the admin surface.
func (t *BPlusTree) Info() map[string]any {
	return map[string]any{
		"root_page_id": t.rootPageID,
		"order":        t.order,
		"leaf_order":   t.order - 1,
	}
}
