// Package dev wraps the small amount of raw device-file plumbing the
// sink needs: open/close of character devices and ioctl calls carrying
// either a pointer payload or the kernel's return value.
package dev

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// File is an open device special file.
type File struct {
	fd   int
	path string
}

// Open opens a device read-write. A missing device is reported as an
// error; callers treat that as "capability absent", not fatal.
func Open(path string) (*File, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &File{fd: fd, path: path}, nil
}

// Path returns the device path the file was opened from.
func (f *File) Path() string { return f.path }

// Fd returns the raw descriptor, for mmap and similar syscalls.
func (f *File) Fd() int { return f.fd }

// Ioctl issues an ioctl whose argument is a pointer payload.
func (f *File) Ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, eno := unix.Syscall(unix.SYS_IOCTL, uintptr(f.fd), req, uintptr(arg))
	if eno != 0 {
		return fmt.Errorf("ioctl %s req=0x%x: %w", f.path, req, eno)
	}
	return nil
}

// IoctlRet issues an ioctl and returns the kernel's return value. A
// nonzero errno is mapped to ret -1, matching how the sunxi drivers
// signal failure through the return value.
func (f *File) IoctlRet(req uintptr, arg unsafe.Pointer) int {
	ret, _, eno := unix.Syscall(unix.SYS_IOCTL, uintptr(f.fd), req, uintptr(arg))
	if eno != 0 {
		return -1
	}
	return int(ret)
}

// ioctl direction bits, as encoded by the kernel's _IOC macros.
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

// IOWR encodes a read-write ioctl request number.
func IOWR(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

// Close closes the device.
func (f *File) Close() error {
	if f.fd < 0 {
		return nil
	}
	err := unix.Close(f.fd)
	f.fd = -1
	return err
}
