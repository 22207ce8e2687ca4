// Package librealsense binds the Intel librealsense2 C library to the sdk
// interfaces. It is only compiled with the "realsense" build tag; without it the
// package is empty and the "librealsense" backend is not registered.
package librealsense
