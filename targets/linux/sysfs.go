//go:build linux

package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// sysfsRoot is the sysfs class directory; tests point it at a temp dir
var sysfsRoot = "/sys/class"

const verifyTimeout = 2 * time.Second

// verify waits for exported files to become writable. udev changes the
// group permissions some time after export, so non-root users must wait.
var verify = os.Geteuid() != 0

// export writes unit to expfile unless f is already accessible, then
// optionally waits for f to become writable
func export(f, expfile string, unit int) error {
	if err := unix.Access(f, unix.W_OK|unix.R_OK); err == nil {
		return nil
	}
	err := writeFile(expfile, fmt.Sprintf("%d", unit))
	if err == nil && verify {
		return verifyFile(f)
	}
	return err
}

func unexport(f string, unit int) error {
	return writeFile(f, fmt.Sprintf("%d", unit))
}

func writeFile(fname, s string) error {
	f, err := os.OpenFile(fname, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(s))
	return err
}

func verifyFile(f string) error {
	sl := time.Millisecond
	for tout := time.Duration(0); tout < verifyTimeout; tout += sl {
		if err := unix.Access(f, unix.W_OK); err == nil {
			return nil
		}
		time.Sleep(sl)
	}
	return fmt.Errorf("%s: not writable", f)
}
