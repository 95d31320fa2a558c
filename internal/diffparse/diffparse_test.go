package diffparse

import (
	"reflect"
	"testing"

	"crev/internal/location"
)

func TestChangedLines_Empty(t *testing.T) {
	spans, err := ChangedLines("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("expected no spans, got %v", spans)
	}
}

func TestChangedLines_Addition(t *testing.T) {
	diff := `diff --git a/foo.py b/foo.py
index 1234567..abcdefg 100644
--- a/foo.py
+++ b/foo.py
@@ -1,4 +1,5 @@
 def main():
     x = 1
+    y = 2
     print(x)

`
	spans, err := ChangedLines(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []location.Span{{File: "foo.py", StartLine: 3, EndLine: 3}}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("spans = %v, want %v", spans, want)
	}
}

func TestChangedLines_Replacement(t *testing.T) {
	diff := `diff --git a/foo.py b/foo.py
index 1234567..abcdefg 100644
--- a/foo.py
+++ b/foo.py
@@ -10,5 +10,5 @@ class Widget:
     def render(self):
-        old_a
-        old_b
+        new_a
+        new_b
         return
`
	spans, err := ChangedLines(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The -/+ run occupies new-file lines 11-12.
	want := []location.Span{{File: "foo.py", StartLine: 11, EndLine: 12}}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("spans = %v, want %v", spans, want)
	}
}

func TestChangedLines_PureDeletionCollapsesToOneLine(t *testing.T) {
	diff := `diff --git a/foo.py b/foo.py
index 1234567..abcdefg 100644
--- a/foo.py
+++ b/foo.py
@@ -5,4 +5,3 @@ def main():
     keep1
-    removed
     keep2
     keep3
`
	spans, err := ChangedLines(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []location.Span{{File: "foo.py", StartLine: 6, EndLine: 6}}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("spans = %v, want %v", spans, want)
	}
}

func TestChangedLines_MultipleFilesAndHunks(t *testing.T) {
	diff := `diff --git a/a.py b/a.py
index 1111111..2222222 100644
--- a/a.py
+++ b/a.py
@@ -1,3 +1,4 @@
+import os
 import sys

 main()
@@ -20,3 +21,4 @@ def tail():
     one
     two
+    three
diff --git a/b.py b/b.py
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/b.py
@@ -0,0 +1,2 @@
+line1
+line2
`
	spans, err := ChangedLines(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []location.Span{
		{File: "a.py", StartLine: 1, EndLine: 1},
		{File: "a.py", StartLine: 23, EndLine: 23},
		{File: "b.py", StartLine: 1, EndLine: 2},
	}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("spans = %v, want %v", spans, want)
	}
}

func TestChangedLines_DeletedFileSkipped(t *testing.T) {
	diff := `diff --git a/gone.py b/gone.py
deleted file mode 100644
index 1234567..0000000
--- a/gone.py
+++ /dev/null
@@ -1,2 +0,0 @@
-line1
-line2
`
	spans, err := ChangedLines(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("deleted file should yield no spans, got %v", spans)
	}
}
