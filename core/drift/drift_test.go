package drift

import (
	"strings"
	"testing"

	"github.com/pydist/pydist/core/catalog"
	"github.com/pydist/pydist/core/errors"
)

const cleanCatalog = `
array:
  sources:
    - arraymodule.c
errno:
  setup-enabled: true
_locale:
  config-c-only: true
nis:
  sources:
    - nismodule.c
`

const cleanSetup = `
*static*
errno errnomodule.c

*disabled*
nis
`

const cleanConfigC = `
struct _inittab _PyImport_Inittab[] = {
    {"_locale", PyInit__locale},

/* Sentinel */
    {0, 0}
};
`

func mustCatalog(t *testing.T, doc string) *catalog.Catalog {
	t.Helper()
	loaded, err := catalog.Load([]byte(doc))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return loaded
}

func TestCheckClean(t *testing.T) {
	cat := mustCatalog(t, cleanCatalog)
	if err := Check(cat, []byte(cleanSetup), cleanConfigC); err != nil {
		t.Fatalf("expected clean, got %v", err)
	}
}

func TestCheckUndeclaredNativeModule(t *testing.T) {
	cat := mustCatalog(t, cleanCatalog)
	setup := cleanSetup + "\n*static*\nrogue roguemodule.c\n"
	err := Check(cat, []byte(setup), cleanConfigC)
	if err == nil {
		t.Fatal("expected drift")
	}
	if errors.CategoryOf(err) != errors.CategoryConfigDrift {
		t.Fatalf("category = %q", errors.CategoryOf(err))
	}
	if !strings.Contains(err.Error(), "rogue") {
		t.Fatalf("error does not name the module: %v", err)
	}
}

func TestCheckSetupEnabledMissingFromNative(t *testing.T) {
	cat := mustCatalog(t, cleanCatalog)
	setup := "*static*\n\n*disabled*\nnis\n"
	err := Check(cat, []byte(setup), cleanConfigC)
	if err == nil {
		t.Fatal("expected drift")
	}
	if !strings.Contains(err.Error(), "errno") {
		t.Fatalf("error does not name errno: %v", err)
	}
}

func TestCheckNativeEnabledNotFlagged(t *testing.T) {
	cat := mustCatalog(t, cleanCatalog)
	setup := cleanSetup + "\n*static*\narray arraymodule.c\n"
	err := Check(cat, []byte(setup), cleanConfigC)
	if err == nil {
		t.Fatal("expected drift: array is enabled natively but not flagged setup-enabled")
	}
	if !strings.Contains(err.Error(), "array") {
		t.Fatalf("error does not name array: %v", err)
	}
}

func TestCheckInittabDrift(t *testing.T) {
	cat := mustCatalog(t, cleanCatalog)
	configC := `
struct _inittab _PyImport_Inittab[] = {
/* Sentinel */
    {0, 0}
};
`
	err := Check(cat, []byte(cleanSetup), configC)
	if err == nil {
		t.Fatal("expected drift: _locale flagged config-c-only but absent from the init table")
	}
	if !strings.Contains(err.Error(), "_locale") {
		t.Fatalf("error does not name _locale: %v", err)
	}
}

func TestCheckNamesEveryOffender(t *testing.T) {
	cat := mustCatalog(t, cleanCatalog)
	setup := cleanSetup + "\n*static*\nrogue1 a.c\nrogue2 b.c\n"
	err := Check(cat, []byte(setup), cleanConfigC)
	if err == nil {
		t.Fatal("expected drift")
	}
	message := err.Error()
	first := strings.Index(message, "rogue1")
	second := strings.Index(message, "rogue2")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("offenders missing or unsorted: %v", err)
	}
}
