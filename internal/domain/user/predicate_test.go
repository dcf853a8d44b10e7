package user

import (
	"reflect"
	"testing"
)

func TestPredicateMatchAllRendersNothing(t *testing.T) {
	where, args, next := MatchAll().Where(Dollar, 1)

	if where != "" || args != nil || next != 1 {
		t.Fatalf("got where=%q args=%v next=%d", where, args, next)
	}
}

func TestPredicateWhereDollar(t *testing.T) {
	p := MatchAll().And(SearchCondition("Jo")).And(RoleCondition("admin"))

	where, args, next := p.Where(Dollar, 1)

	want := ` WHERE (LOWER(username) LIKE $1 ESCAPE '\' OR LOWER(email) LIKE $2 ESCAPE '\') AND (role = $3)`
	if where != want {
		t.Fatalf("where:\n got %q\nwant %q", where, want)
	}
	if !reflect.DeepEqual(args, []any{"%jo%", "%jo%", "admin"}) {
		t.Fatalf("unexpected args %v", args)
	}
	if next != 4 {
		t.Fatalf("next = %d, want 4", next)
	}
}

func TestPredicateWhereQuestion(t *testing.T) {
	where, args, _ := MatchAll().And(RoleCondition("user")).Where(Question, 1)

	if where != " WHERE (role = ?)" {
		t.Fatalf("got %q", where)
	}
	if len(args) != 1 || args[0] != "user" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSearchConditionEscapesWildcards(t *testing.T) {
	c := SearchCondition(`50%_off\`)

	if c.Args[0] != `%50\%\_off\\%` {
		t.Fatalf("got %v", c.Args[0])
	}
}

func TestPredicateAndDoesNotAlias(t *testing.T) {
	base := MatchAll().And(RoleCondition("user"))
	a := base.And(SearchCondition("a"))
	b := base.And(SearchCondition("b"))

	if len(base.Conditions()) != 1 {
		t.Fatalf("base mutated: %d conditions", len(base.Conditions()))
	}
	if a.Conditions()[1].Args[0] == b.Conditions()[1].Args[0] {
		t.Fatalf("branches share backing storage")
	}
}

func TestPatchAssignments(t *testing.T) {
	name := "neo"
	role := RoleAdmin

	sets, args := Patch{Username: &name, Role: &role}.Assignments(Dollar)

	if !reflect.DeepEqual(sets, []string{"username = $1", "role = $2"}) {
		t.Fatalf("unexpected sets %v", sets)
	}
	if !reflect.DeepEqual(args, []any{"neo", "admin"}) {
		t.Fatalf("unexpected args %v", args)
	}

	if sets, args := (Patch{}).Assignments(Question); sets != nil || args != nil {
		t.Fatalf("empty patch rendered %v %v", sets, args)
	}
}

func TestPredicateWhereRewritesEveryMarker(t *testing.T) {
	// A '?' inside a literal is renumbered too; literal question marks belong in Args.
	literal := Condition{SQL: "username = '?' OR email = ?", Args: []any{"a@x.com"}}
	where, _, next := MatchAll().And(literal).Where(Dollar, 1)

	if where != " WHERE (username = '$1' OR email = $2)" || next != 3 {
		t.Fatalf("got %q next=%d", where, next)
	}

	bound := Condition{SQL: "username = ? OR email = ?", Args: []any{"?", "a@x.com"}}
	where, args, next := MatchAll().And(bound).Where(Dollar, 1)

	if where != " WHERE (username = $1 OR email = $2)" || next != 3 {
		t.Fatalf("got %q next=%d", where, next)
	}
	if !reflect.DeepEqual(args, []any{"?", "a@x.com"}) {
		t.Fatalf("unexpected args %v", args)
	}
}
