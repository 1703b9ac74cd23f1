package runner

import (
	"fmt"
	"go/types"
	"reflect"

	"golang.org/x/tools/go/analysis"
)

type factKey struct {
	analyzer *analysis.Analyzer
	obj      types.Object // nil for package facts
	pkg      *types.Package
	typ      reflect.Type
}

// factStore keeps the facts exported while analyzing the one project
// package. Facts about reference packages are never available.
type factStore struct {
	facts map[factKey]analysis.Fact
	order []factKey
}

func newFactStore() *factStore {
	return &factStore{facts: make(map[factKey]analysis.Fact)}
}

func (s *factStore) put(key factKey, fact analysis.Fact) {
	if _, ok := s.facts[key]; !ok {
		s.order = append(s.order, key)
	}
	s.facts[key] = fact
}

// get copies the stored fact into dst.
func (s *factStore) get(key factKey, dst analysis.Fact) bool {
	fact, ok := s.facts[key]
	if !ok {
		return false
	}
	reflect.ValueOf(dst).Elem().Set(reflect.ValueOf(fact).Elem())
	return true
}

func (s *factStore) bind(pass *analysis.Pass) {
	a := pass.Analyzer

	pass.ImportObjectFact = func(obj types.Object, fact analysis.Fact) bool {
		if obj == nil {
			panic("nil object given to ImportObjectFact")
		}
		return s.get(factKey{analyzer: a, obj: obj, typ: reflect.TypeOf(fact)}, fact)
	}
	pass.ExportObjectFact = func(obj types.Object, fact analysis.Fact) {
		if obj.Pkg() != pass.Pkg {
			panic(fmt.Sprintf("%s: fact %T for %s exported outside package %s", a.Name, fact, obj, pass.Pkg.Path()))
		}
		s.put(factKey{analyzer: a, obj: obj, typ: reflect.TypeOf(fact)}, fact)
	}
	pass.ImportPackageFact = func(pkg *types.Package, fact analysis.Fact) bool {
		if pkg == nil {
			panic("nil package given to ImportPackageFact")
		}
		return s.get(factKey{analyzer: a, pkg: pkg, typ: reflect.TypeOf(fact)}, fact)
	}
	pass.ExportPackageFact = func(fact analysis.Fact) {
		s.put(factKey{analyzer: a, pkg: pass.Pkg, typ: reflect.TypeOf(fact)}, fact)
	}
	pass.AllObjectFacts = func() []analysis.ObjectFact {
		var facts []analysis.ObjectFact
		for _, key := range s.order {
			if key.analyzer == a && key.obj != nil {
				facts = append(facts, analysis.ObjectFact{Object: key.obj, Fact: s.facts[key]})
			}
		}
		return facts
	}
	pass.AllPackageFacts = func() []analysis.PackageFact {
		var facts []analysis.PackageFact
		for _, key := range s.order {
			if key.analyzer == a && key.obj == nil {
				facts = append(facts, analysis.PackageFact{Package: key.pkg, Fact: s.facts[key]})
			}
		}
		return facts
	}
}
