package callingconv

import "testing"

func TestForthRegisterNames(t *testing.T) {
	cases := []struct {
		reg  ForthRegister
		want string
	}{
		{DSP, "r15"}, {TOS, "r12"}, {NOS, "r13"}, {ThirdOS, "r14"}, {RSP, "r11"},
	}
	for _, c := range cases {
		if got := c.reg.Name(); got != c.want {
			t.Errorf("Name() = %q, want %q", got, c.want)
		}
	}
	for i := 0; i < 9; i++ {
		reg := Scratch(i)
		if reg.Name() == "" {
			t.Fatalf("Scratch(%d).Name() is empty", i)
		}
		if reg.Constraint() == "" {
			t.Fatalf("Scratch(%d).Constraint() is empty", i)
		}
	}
}

func TestRegisterAllocatorBasic(t *testing.T) {
	a := NewRegisterAllocator()

	reg1, err := a.Allocate("temp1")
	if err != nil {
		t.Fatal(err)
	}
	reg2, err := a.Allocate("temp2")
	if err != nil {
		t.Fatal(err)
	}
	if reg1 == reg2 {
		t.Fatal("expected distinct registers for distinct owners")
	}

	a.Free("temp1")
	if _, err := a.Allocate("temp3"); err != nil {
		t.Fatalf("expected reallocation after Free to succeed: %v", err)
	}
}

func TestRegisterAllocatorExhaustion(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < 9; i++ {
		if _, err := a.Allocate(string(rune('a' + i))); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, err := a.Allocate("overflow"); err == nil {
		t.Fatal("expected the tenth allocation to fail")
	}
	a.Free("a")
	if _, err := a.Allocate("new"); err != nil {
		t.Fatalf("expected allocation after freeing one to succeed: %v", err)
	}
}

func TestRegisterAllocatorReset(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < 5; i++ {
		if _, err := a.Allocate(string(rune('a' + i))); err != nil {
			t.Fatal(err)
		}
	}
	a.Reset()
	for i := 0; i < 9; i++ {
		if _, err := a.Allocate(string(rune('a' + i))); err != nil {
			t.Fatalf("allocate %d after reset: %v", i, err)
		}
	}
}

func TestConventionTypes(t *testing.T) {
	if Forth().Type() != Internal {
		t.Fatal("Forth() should be the internal convention")
	}
	if ToC().Type() != ForthToC {
		t.Fatal("ToC() should be the forth-to-c convention")
	}
	if FromC().Type() != CToForth {
		t.Fatal("FromC() should be the c-to-forth convention")
	}
	if Forth().RequiresPrologue() || Forth().RequiresEpilogue() {
		t.Fatal("internal convention should need no prologue/epilogue")
	}
	if !ToC().RequiresPrologue() || !ToC().RequiresEpilogue() {
		t.Fatal("forth-to-c convention should require a prologue and epilogue")
	}
}

func TestFFIWrapperCreationAndCaching(t *testing.T) {
	reg := NewFFIRegistry()

	w, err := reg.CreateWrapper("printf", 2)
	if err != nil {
		t.Fatal(err)
	}
	if w.Arity != 2 || w.Symbol != "printf" {
		t.Fatalf("unexpected wrapper: %+v", w)
	}

	cached, ok := reg.Get("printf")
	if !ok {
		t.Fatal("expected printf to be cached after CreateWrapper")
	}
	if cached != w {
		t.Fatal("Get should return the same cached wrapper instance")
	}

	if _, ok := reg.Get("nowhere"); ok {
		t.Fatal("unexpected cache hit for a symbol never created")
	}
}

func TestFFIWrapperRejectsExcessiveArity(t *testing.T) {
	reg := NewFFIRegistry()
	if _, err := reg.CreateWrapper("variadic_nightmare", 7); err == nil {
		t.Fatal("expected an arity above the SysV register count to be rejected")
	}
}

func TestRegisterLibc(t *testing.T) {
	reg := NewFFIRegistry()
	if err := reg.RegisterLibc(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"putchar", "getchar", "malloc", "free", "strlen", "exit"} {
		if _, ok := reg.Get(name); !ok {
			t.Fatalf("expected %q to be registered by RegisterLibc", name)
		}
	}
}
