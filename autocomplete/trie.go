package autocomplete

import (
	"sort"
	"strings"
)

// TrieNode represents a node in the prefix tree (trie) for autocompletion
type TrieNode struct {
	Children map[rune]*TrieNode
	IsWord   bool
	Word     string // original casing of the inserted word
	Score    int    // For ranking suggestions
	order    int    // insertion order, breaks score ties
}

// Trie is a case-insensitive prefix tree over the keyword and function dictionaries
type Trie struct {
	Root  *TrieNode
	count int
}

// NewTrie creates a new trie for autocompletion
func NewTrie() *Trie {
	return &Trie{
		Root: &TrieNode{
			Children: make(map[rune]*TrieNode),
		},
	}
}

// NewTrieFrom builds a trie holding words, all with the same score, in order.
func NewTrieFrom(words []string) *Trie {
	t := NewTrie()
	for _, w := range words {
		t.Insert(w, 1)
	}
	return t
}

// Insert adds a word to the trie with a score. Re-inserting a word adds to its score.
func (t *Trie) Insert(word string, score int) {
	node := t.Root

	for _, char := range strings.ToLower(word) {
		if _, exists := node.Children[char]; !exists {
			node.Children[char] = &TrieNode{
				Children: make(map[rune]*TrieNode),
			}
		}
		node = node.Children[char]
	}

	if !node.IsWord {
		node.IsWord = true
		node.Word = word
		node.order = t.count
		t.count++
	}
	node.Score += score
}

// Search finds exact matches for a word in the trie
func (t *Trie) Search(word string) bool {
	node := t.findNode(word)
	return node != nil && node.IsWord
}

// HasPrefix reports whether any word in the trie starts with prefix.
func (t *Trie) HasPrefix(prefix string) bool {
	return prefix != "" && t.findNode(prefix) != nil
}

// findNode locates a node for a given prefix
func (t *Trie) findNode(prefix string) *TrieNode {
	node := t.Root

	for _, char := range strings.ToLower(prefix) {
		if _, exists := node.Children[char]; !exists {
			return nil
		}
		node = node.Children[char]
	}
	return node
}

// GetSuggestions returns up to limit words starting with prefix, highest
// score first and insertion order among equal scores. A limit <= 0 means no limit.
func (t *Trie) GetSuggestions(prefix string, limit int) []string {
	node := t.findNode(prefix)
	if node == nil {
		return []string{}
	}

	var found []*TrieNode
	var collect func(node *TrieNode)
	collect = func(node *TrieNode) {
		if node.IsWord {
			found = append(found, node)
		}
		for _, child := range node.Children {
			collect(child)
		}
	}
	collect(node)

	sort.Slice(found, func(i, j int) bool {
		if found[i].Score != found[j].Score {
			return found[i].Score > found[j].Score
		}
		return found[i].order < found[j].order
	})

	if limit <= 0 || limit > len(found) {
		limit = len(found)
	}
	result := make([]string, 0, limit)
	for _, n := range found[:limit] {
		result = append(result, n.Word)
	}
	return result
}
