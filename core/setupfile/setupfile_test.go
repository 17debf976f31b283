package setupfile

import (
	"reflect"
	"testing"
)

func TestParseLineBasic(t *testing.T) {
	line, ok := ParseLine("zlib zlibmodule.c -I$(prefix)/include -lz")
	if !ok {
		t.Fatal("expected a directive")
	}
	if line.Extension != "zlib" {
		t.Fatalf("extension = %q", line.Extension)
	}
	if line.Variant != DefaultVariant {
		t.Fatalf("variant = %q", line.Variant)
	}
	if !reflect.DeepEqual(line.Sources, []string{"zlibmodule.c"}) {
		t.Fatalf("sources = %v", line.Sources)
	}
	if !reflect.DeepEqual(line.Objects, []string{"Modules/zlibmodule.o"}) {
		t.Fatalf("objects = %v", line.Objects)
	}
	if !reflect.DeepEqual(line.Links, []string{"z"}) {
		t.Fatalf("links = %v", line.Links)
	}
	if !reflect.DeepEqual(line.Includes, []string{"$(prefix)/include"}) {
		t.Fatalf("includes = %v", line.Includes)
	}
}

func TestParseLineStripsComments(t *testing.T) {
	if _, ok := ParseLine("# just a comment"); ok {
		t.Fatal("comment should not parse")
	}
	if _, ok := ParseLine("   "); ok {
		t.Fatal("blank line should not parse")
	}
	line, ok := ParseLine("math mathmodule.c # needs libm on some platforms")
	if !ok {
		t.Fatal("expected a directive")
	}
	if len(line.Tokens) != 1 {
		t.Fatalf("tokens = %v", line.Tokens)
	}
}

func TestParseLineSourceDirectoriesFlattened(t *testing.T) {
	line, ok := ParseLine("_sqlite3 _sqlite/connection.c _sqlite/module.c")
	if !ok {
		t.Fatal("expected a directive")
	}
	want := []string{"Modules/connection.o", "Modules/module.o"}
	if !reflect.DeepEqual(line.Objects, want) {
		t.Fatalf("objects = %v, want %v", line.Objects, want)
	}
}

func TestParseLineVariantTag(t *testing.T) {
	line, ok := ParseLine("_crypt VARIANT=legacy _cryptmodule.c -lcrypt")
	if !ok {
		t.Fatal("expected a directive")
	}
	if line.Variant != "legacy" {
		t.Fatalf("variant = %q", line.Variant)
	}
	rendered := line.Render()
	if rendered != "_crypt _cryptmodule.c -lcrypt" {
		t.Fatalf("rendered = %q", rendered)
	}
}

func TestParseLineFrameworkAndArchive(t *testing.T) {
	line, ok := ParseLine("_scproxy _scproxy.c -framework SystemConfiguration $(LIBFFI_DIR)/libffi.a -DUSE_X=1")
	if !ok {
		t.Fatal("expected a directive")
	}
	if !reflect.DeepEqual(line.Frameworks, []string{"SystemConfiguration"}) {
		t.Fatalf("frameworks = %v", line.Frameworks)
	}
	if !reflect.DeepEqual(line.Archives, []string{"$(LIBFFI_DIR)/libffi.a"}) {
		t.Fatalf("archives = %v", line.Archives)
	}
	if !reflect.DeepEqual(line.Defines, []string{"-DUSE_X=1"}) {
		t.Fatalf("defines = %v", line.Defines)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	inputs := []string{
		"zlib zlibmodule.c -lz",
		"_ssl _ssl.c -I$(OPENSSL)/include -lssl -lcrypto",
		"_scproxy _scproxy.c -framework SystemConfiguration -framework CoreFoundation",
	}
	for _, input := range inputs {
		first, ok := ParseLine(input)
		if !ok {
			t.Fatalf("parse %q failed", input)
		}
		second, ok := ParseLine(first.Render())
		if !ok {
			t.Fatalf("re-parse %q failed", first.Render())
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("round trip changed %q: %#v vs %#v", input, first, second)
		}
	}
}

const sampleSetup = `
# Edit this file for local setup changes
*static*
array arraymodule.c
math mathmodule.c # -lm

*shared*
zlib zlibmodule.c -lz

*disabled*
nis
spwd  # no shadow passwords here
`

func TestParseFileSections(t *testing.T) {
	parsed, err := ParseFile([]byte(sampleSetup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed.Static) != 2 {
		t.Fatalf("static = %d lines", len(parsed.Static))
	}
	if len(parsed.Shared) != 1 || parsed.Shared[0].Extension != "zlib" {
		t.Fatalf("shared = %+v", parsed.Shared)
	}
	if !reflect.DeepEqual(parsed.Disabled, []string{"nis", "spwd"}) {
		t.Fatalf("disabled = %v", parsed.Disabled)
	}
	names := parsed.EnabledNames()
	for _, want := range []string{"array", "math", "zlib"} {
		if _, ok := names[want]; !ok {
			t.Fatalf("missing enabled name %s", want)
		}
	}
}

const sampleConfigC = `
/* Generated automatically from ./Modules/config.c.in */
extern PyObject* PyInit_posix(void);
extern PyObject* PyInit__signal(void);

struct _inittab _PyImport_Inittab[] = {
    {"posix", PyInit_posix},
    {"_signal", PyInit__signal},

/* This module lives in marshal.c */
    {"marshal", PyMarshal_Init},

/* Sentinel */
    {0, 0}
};
`

func TestParseConfigC(t *testing.T) {
	table, err := ParseConfigC(sampleConfigC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{
		"posix":   "PyInit_posix",
		"_signal": "PyInit__signal",
		"marshal": "PyMarshal_Init",
	}
	if !reflect.DeepEqual(table, want) {
		t.Fatalf("table = %v", table)
	}
}

func TestParseConfigCWithoutTable(t *testing.T) {
	if _, err := ParseConfigC("int main(void) { return 0; }"); err == nil {
		t.Fatal("expected error for missing init table")
	}
}
