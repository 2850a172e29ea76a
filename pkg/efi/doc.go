// Package efi implements the EFI variable codec and systemd-boot loader
// entry helpers of §4.7/§6: UTF-16LE encode/decode with the trailing null
// pair, the bootloader-interface and global variable GUIDs, read/write of
// LoaderEntryDefault/LoaderEntryOneShot/LoaderEntrySelected/SecureBoot/
// LoaderEntries, and the UKI add-on directory/file naming helpers.
package efi
