package graph

import (
	"fmt"

	"github.com/Morzio/Hair-Factory/internal/hash"
)

// signatureLink is a link expressed between global addresses.
type signatureLink struct {
	From       Address `json:"from"`
	FromSocket string  `json:"from_socket"`
	To         Address `json:"to"`
	ToSocket   string  `json:"to_socket"`
}

// SignatureDoc is the value-independent structure of a graph.
type SignatureDoc struct {
	Indices []Address       `json:"indices"`
	Types   []string        `json:"types"`
	Links   []signatureLink `json:"links"`
}

// Structure scans g and returns its node addresses and kinds in pre-order
// followed by its links, graph by graph in scan order.
func Structure(g *Graph) (*SignatureDoc, error) {
	doc := &SignatureDoc{Indices: []Address{}, Types: []string{}, Links: []signatureLink{}}
	err := g.Walk(func(addr Address, _ *Graph, node *Node) error {
		doc.Indices = append(doc.Indices, addr)
		doc.Types = append(doc.Types, node.Kind)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := linkScan(g, nil, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func linkScan(g *Graph, base Address, doc *SignatureDoc) error {
	for _, l := range g.Links {
		if l.From < 0 || l.From >= len(g.Nodes) || l.To < 0 || l.To >= len(g.Nodes) {
			return fmt.Errorf("link %d:%s -> %d:%s references a missing node", l.From, l.FromSocket, l.To, l.ToSocket)
		}
		doc.Links = append(doc.Links, signatureLink{
			From:       base.Child(l.From),
			FromSocket: l.FromSocket,
			To:         base.Child(l.To),
			ToSocket:   l.ToSocket,
		})
	}
	for i, node := range g.Nodes {
		if node.Kind == KindGroup && node.Group != nil {
			if err := linkScan(node.Group, base.Child(i), doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// Signature is the digest of the graph's topology. Parameter values do not
// contribute; reordering nodes does.
func Signature(g *Graph) (hash.Digest, error) {
	doc, err := Structure(g)
	if err != nil {
		return "", fmt.Errorf("scanning graph %q: %w", g.Name, err)
	}
	return hash.Value(doc)
}

// ClassifySpecialNodes maps every special kind of class c present in g to
// the addresses of its nodes, in scan order.
func ClassifySpecialNodes(c Class, g *Graph) map[string][]Address {
	out := make(map[string][]Address)
	_ = g.Walk(func(addr Address, _ *Graph, node *Node) error {
		if IsSpecial(c, node.Kind) {
			out[node.Kind] = append(out[node.Kind], addr)
		}
		return nil
	})
	return out
}
