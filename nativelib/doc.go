// Package nativelib locates and loads the native serial library at runtime
// and binds its exported C functions to the driver.Driver contract.
//
// The bootstrap runs once per process. It tries, in order:
//
//  1. the versioned file name (libnativeserial-2.9.4.so) through the system
//     library search path,
//  2. the unversioned file name (libnativeserial.so) the same way,
//  3. the directory named by SERIAL_BOOT_LIBRARY_PATH, when it exists, or
//     else a copy extracted from a registered bundle into
//     <root>/<platform folder>/ next to the running executable.
//
// Libraries found through the system path are trusted. Libraries loaded in
// step 3 have their version compared with Version; a mismatch is logged and
// the library is still used.
//
// Bundles are plain fs.FS values laid out as natives/<folder>/<file>:
//
//	//go:embed natives
//	var natives embed.FS
//
//	func init() { nativelib.RegisterBundle(natives) }
//
// The library must export these C functions:
//
//	const char* nativeserial_version(void);
//	int64_t nativeserial_open_port(const char* name, bool exclusive);
//	bool    nativeserial_set_params(int64_t h, int32_t baud, int32_t data_bits,
//	                                int32_t stop_bits, int32_t parity,
//	                                bool rts, bool dtr, int32_t flags);
//	bool    nativeserial_purge_port(int64_t h, int32_t flags);
//	bool    nativeserial_close_port(int64_t h);
//	bool    nativeserial_set_events_mask(int64_t h, int32_t mask);
//	int32_t nativeserial_get_events_mask(int64_t h);
//	int32_t nativeserial_wait_events(int64_t h, int32_t* pairs, int32_t max_pairs);
//	bool    nativeserial_set_rts(int64_t h, bool on);
//	bool    nativeserial_set_dtr(int64_t h, bool on);
//	int32_t nativeserial_read_bytes(int64_t h, uint8_t* buf, int32_t n);
//	bool    nativeserial_write_bytes(int64_t h, const uint8_t* buf, int32_t n);
//	bool    nativeserial_get_buffers_bytes_count(int64_t h, int32_t* counts);
//	bool    nativeserial_set_flow_control_mode(int64_t h, int32_t mask);
//	int32_t nativeserial_get_flow_control_mode(int64_t h);
//	bool    nativeserial_get_lines_status(int64_t h, int32_t* lines);
//	bool    nativeserial_send_break(int64_t h, int32_t duration_ms);
//
// open_port returns a negative code on failure (-1 busy, -2 not found,
// -3 permission denied, -4 not a serial port). wait_events and read_bytes
// block and return -1 once the handle is closed. Binding uses purego, so no
// cgo toolchain is required on 64-bit linux, darwin, freebsd and windows.
package nativelib
