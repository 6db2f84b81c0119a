//go:build darwin

package introspect

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <ApplicationServices/ApplicationServices.h>
#include <stdlib.h>
#include <string.h>

enum {
	OT_OK = 0,
	OT_NO_FOCUS = 1,
	OT_NO_ATTR = 2,
	OT_DENIED = 3,
	OT_FAILED = 4,
};

static int otMapError(AXError err) {
	switch (err) {
	case kAXErrorSuccess:
		return OT_OK;
	case kAXErrorAPIDisabled:
		return OT_DENIED;
	case kAXErrorNoValue:
	case kAXErrorAttributeUnsupported:
		return OT_NO_ATTR;
	default:
		return OT_FAILED;
	}
}

static int otFocusedElement(AXUIElementRef *out) {
	AXUIElementRef sys = AXUIElementCreateSystemWide();
	if (sys == NULL) {
		return OT_FAILED;
	}
	CFTypeRef focused = NULL;
	AXError err = AXUIElementCopyAttributeValue(sys, kAXFocusedUIElementAttribute, &focused);
	CFRelease(sys);
	if (err == kAXErrorAPIDisabled) {
		return OT_DENIED;
	}
	if (err != kAXErrorSuccess || focused == NULL) {
		return OT_NO_FOCUS;
	}
	*out = (AXUIElementRef)focused;
	return OT_OK;
}

// otCopyString returns a malloc'd UTF-8 copy of a string attribute.
static int otCopyString(AXUIElementRef el, CFStringRef attr, char **out) {
	CFTypeRef value = NULL;
	AXError err = AXUIElementCopyAttributeValue(el, attr, &value);
	if (err != kAXErrorSuccess) {
		return otMapError(err);
	}
	if (value == NULL) {
		return OT_NO_ATTR;
	}
	if (CFGetTypeID(value) != CFStringGetTypeID()) {
		CFRelease(value);
		return OT_NO_ATTR;
	}
	CFStringRef s = (CFStringRef)value;
	CFIndex max = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
	char *buf = malloc(max);
	if (buf == NULL || !CFStringGetCString(s, buf, max, kCFStringEncodingUTF8)) {
		free(buf);
		CFRelease(value);
		return OT_FAILED;
	}
	CFRelease(value);
	*out = buf;
	return OT_OK;
}

static int otFocusedIsSecure(int *secure) {
	AXUIElementRef el = NULL;
	int rc = otFocusedElement(&el);
	if (rc != OT_OK) {
		return rc;
	}
	*secure = 0;

	char *role = NULL;
	rc = otCopyString(el, kAXRoleAttribute, &role);
	if (rc != OT_OK) {
		CFRelease(el);
		return rc;
	}
	if (strcmp(role, "AXSecureTextField") == 0) {
		*secure = 1;
	}
	free(role);

	// Most elements have no subrole; its absence is not an error.
	char *subrole = NULL;
	if (otCopyString(el, kAXSubroleAttribute, &subrole) == OT_OK) {
		if (strcmp(subrole, "AXSecureTextField") == 0) {
			*secure = 1;
		}
		free(subrole);
	}
	CFRelease(el);
	return OT_OK;
}

static int otFocusedSelectedText(char **out) {
	AXUIElementRef el = NULL;
	int rc = otFocusedElement(&el);
	if (rc != OT_OK) {
		return rc;
	}
	rc = otCopyString(el, kAXSelectedTextAttribute, out);
	CFRelease(el);
	return rc;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

func newPlatform() Introspector {
	return axIntrospector{}
}

// axIntrospector queries the macOS Accessibility API.
type axIntrospector struct{}

func (axIntrospector) Available() bool { return true }

func (axIntrospector) FocusedElementSecure() (bool, error) {
	var secure C.int
	if rc := C.otFocusedIsSecure(&secure); rc != C.OT_OK {
		return false, axError(rc)
	}
	return secure == 1, nil
}

func (axIntrospector) FocusedSelectedText() (string, error) {
	var out *C.char
	if rc := C.otFocusedSelectedText(&out); rc != C.OT_OK {
		return "", axError(rc)
	}
	defer C.free(unsafe.Pointer(out))
	return C.GoString(out), nil
}

func axError(rc C.int) error {
	switch rc {
	case C.OT_NO_FOCUS:
		return ErrNoFocusedElement
	case C.OT_NO_ATTR:
		return ErrNoAttributeSupport
	case C.OT_DENIED:
		return ErrPermissionDenied
	default:
		return fmt.Errorf("accessibility call failed (code %d)", int(rc))
	}
}
